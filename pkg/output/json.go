package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fridayops/crossing/pkg/models"
)

// WriteJSON serializes an analysis result as indented JSON. Map-free structs
// and pre-sorted slices make the encoding byte-for-byte reproducible for
// identical input source.
func WriteJSON(w io.Writer, result *models.AnalyzeResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}
