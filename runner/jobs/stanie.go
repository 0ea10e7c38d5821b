package jobs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	stanDriverName = "run_stan.py"
	stanOutputDir  = "output"
)

// StanieSpec is the content of a .stanie file.
type StanieSpec struct {
	Stan    string
	Data    string
	Options StanieOptions
}

// StanieOptions are decoded leniently: save_warmup may be given as 1 or
// "true", counts as strings.
type StanieOptions struct {
	IterSampling *int  `mapstructure:"iter_sampling"`
	IterWarmup   *int  `mapstructure:"iter_warmup"`
	Chains       *int  `mapstructure:"chains"`
	SaveWarmup   *bool `mapstructure:"save_warmup"`
	Seed         *int  `mapstructure:"seed"`
}

// ParseStanie decodes and validates a .stanie document.
func ParseStanie(b []byte) (*StanieSpec, error) {
	var doc struct {
		Stan    string                 `yaml:"stan"`
		Data    string                 `yaml:"data"`
		Options map[string]interface{} `yaml:"options"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing stanie file")
	}
	s := StanieSpec{Stan: doc.Stan, Data: doc.Data}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &s.Options,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(doc.Options); err != nil {
		return nil, errors.Wrap(err, "stanie file: options")
	}
	switch {
	case s.Stan == "":
		return nil, errors.New("stanie file: missing stan")
	case s.Data == "":
		return nil, errors.New("stanie file: missing data")
	case s.Options.IterSampling == nil:
		return nil, errors.New("stanie file: missing options.iter_sampling")
	case s.Options.IterWarmup == nil:
		return nil, errors.New("stanie file: missing options.iter_warmup")
	}
	return &s, nil
}

// Driver renders a cmdstanpy script that compiles and samples the model,
// writing chain CSVs into output/.
func (s *StanieSpec) Driver(parallelChains int) string {
	args := [][2]string{
		{"data", pyString(s.Data)},
		{"iter_sampling", strconv.Itoa(*s.Options.IterSampling)},
		{"iter_warmup", strconv.Itoa(*s.Options.IterWarmup)},
	}
	if s.Options.Chains != nil {
		args = append(args, [2]string{"chains", strconv.Itoa(*s.Options.Chains)})
	}
	if s.Options.SaveWarmup != nil {
		args = append(args, [2]string{"save_warmup", pyBool(*s.Options.SaveWarmup)})
	}
	if s.Options.Seed != nil {
		args = append(args, [2]string{"seed", strconv.Itoa(*s.Options.Seed)})
	}
	args = append(args,
		[2]string{"parallel_chains", strconv.Itoa(parallelChains)},
		[2]string{"output_dir", pyString(stanOutputDir)},
	)

	var b strings.Builder
	b.WriteString("from cmdstanpy import CmdStanModel\n\n")
	fmt.Fprintf(&b, "model = CmdStanModel(stan_file=%s)\n", pyString(s.Stan))
	b.WriteString("fit = model.sample(\n")
	for _, a := range args {
		fmt.Fprintf(&b, "    %s=%s,\n", a[0], a[1])
	}
	b.WriteString(")\n")
	b.WriteString("print(fit.summary())\n")
	return b.String()
}

func pyString(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`).Replace(s) + "'"
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
