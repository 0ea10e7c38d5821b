// Package stanout reads the per-chain CSV files a sampler writes into an
// output directory.
package stanout

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Chain is the parsed content of one chain's CSV file.
type Chain struct {
	ChainID        string               `json:"chainId"`
	RawHeader      string               `json:"rawHeader"`
	RawFooter      string               `json:"rawFooter"`
	NumWarmupDraws int                  `json:"numWarmupDraws"`
	SequenceNames  []string             `json:"sequenceNames"`
	Sequences      map[string][]float64 `json:"sequences"`
}

var chainSuffix = regexp.MustCompile(`[_-](\d+)$`)

// ChainID derives a chain id from a csv file name: "fit_2.csv" is "chain_2",
// a name without a numeric suffix is used as is.
func ChainID(fileName string) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	if m := chainSuffix.FindStringSubmatch(base); m != nil {
		return "chain_" + m[1]
	}
	return base
}

// ParseOutputDir parses every *.csv file in dir, in name order.
func ParseOutputDir(dir string) ([]Chain, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	chains := make([]Chain, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		c, err := Parse(f)
		f.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", filepath.Base(p))
		}
		c.ChainID = ChainID(p)
		chains = append(chains, *c)
	}
	return chains, nil
}

// Parse reads one chain. Comment lines ahead of the first draw go to the
// header, comment lines after it go to the footer.
func Parse(r io.Reader) (*Chain, error) {
	c := &Chain{Sequences: make(map[string][]float64)}
	var header, footer strings.Builder
	seenDraw := false
	br := bufio.NewReader(r)
	for lineNum := 1; ; lineNum++ {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		trimmed := strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(trimmed, "#"):
			if seenDraw {
				footer.WriteString(trimmed + "\n")
			} else {
				header.WriteString(trimmed + "\n")
			}
		case strings.TrimSpace(trimmed) == "":
		case c.SequenceNames == nil:
			names, perr := splitRow(trimmed)
			if perr != nil {
				return nil, errors.Wrapf(perr, "line %d", lineNum)
			}
			c.SequenceNames = names
		default:
			fields, perr := splitRow(trimmed)
			if perr != nil {
				return nil, errors.Wrapf(perr, "line %d", lineNum)
			}
			if len(fields) != len(c.SequenceNames) {
				return nil, errors.Errorf("line %d: %d values for %d columns", lineNum, len(fields), len(c.SequenceNames))
			}
			for i, s := range fields {
				v, perr := strconv.ParseFloat(strings.TrimSpace(s), 64)
				if perr != nil {
					return nil, errors.Wrapf(perr, "line %d column %s", lineNum, c.SequenceNames[i])
				}
				name := c.SequenceNames[i]
				c.Sequences[name] = append(c.Sequences[name], v)
			}
			seenDraw = true
		}
		if err == io.EOF {
			break
		}
	}
	if c.SequenceNames == nil {
		return nil, errors.New("no column header")
	}
	c.RawHeader = header.String()
	c.RawFooter = footer.String()
	c.NumWarmupDraws = warmupDraws(c.RawHeader)
	return c, nil
}

func splitRow(line string) ([]string, error) {
	return csv.NewReader(strings.NewReader(line)).Read()
}

// warmupDraws is num_warmup when the header says warmup draws were saved.
func warmupDraws(header string) int {
	settings := headerSettings(header)
	switch settings["save_warmup"] {
	case "1", "true":
	default:
		return 0
	}
	n, err := strconv.Atoi(settings["num_warmup"])
	if err != nil {
		return 0
	}
	return n
}

// headerSettings collects "key = value" comment lines, dropping annotations
// such as "(Default)".
func headerSettings(header string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(header, "\n") {
		kv := strings.SplitN(strings.TrimLeft(line, "# "), "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		val := strings.Fields(kv[1])
		if key == "" || len(val) == 0 {
			continue
		}
		out[key] = val[0]
	}
	return out
}
