// Package eval scores search quality against a golden dataset of queries
// labelled with their relevant movie titles.
package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
)

// TestCase is one labelled query.
type TestCase struct {
	Query        string   `json:"query"`
	RelevantDocs []string `json:"relevant_docs"`
}

// Dataset is a golden dataset.
type Dataset struct {
	TestCases []TestCase `json:"test_cases"`
}

// LoadDataset reads a golden dataset file.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, herrors.New(herrors.ErrCodeFileNotFound,
				fmt.Sprintf("golden dataset not found: %s", path), err).
				WithSuggestion("Set paths.golden_dataset or pass --dataset")
		}
		return nil, herrors.IOError("read golden dataset", err)
	}
	return ParseDataset(data)
}

// ParseDataset decodes and validates dataset JSON. Every case needs a
// non-empty query.
func ParseDataset(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, herrors.New(herrors.ErrCodeFileCorrupt, "decode golden dataset", err)
	}
	for i, tc := range ds.TestCases {
		if strings.TrimSpace(tc.Query) == "" {
			return nil, herrors.ValidationError(fmt.Sprintf("test case %d has an empty query", i), nil)
		}
	}
	return &ds, nil
}
