package errors

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := errors.New("file not found: data.json")
	err := Wrap(Staging, base, "fetching dependency")
	assert.Equal(t, Staging, KindOf(err))
	assert.Equal(t, "fetching dependency: file not found: data.json", err.Error())
	assert.Equal(t, base, errors.Cause(err.Cause()))

	wrapped := fmt.Errorf("job 12: %w", Errorf(Runtime, "Timeout"))
	assert.Equal(t, Runtime, KindOf(wrapped))
	assert.Equal(t, Unknown, KindOf(base))
}

func TestNilErrors(t *testing.T) {
	assert.Nil(t, NewError(Output, nil))
	assert.Nil(t, Wrap(Output, nil, "ignored"))
	var je *JobError
	assert.Equal(t, Unknown, je.Kind())
}
