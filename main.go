// =============================================================================
// Mineral Statistics ETL - Main Entry Point
// =============================================================================
//
// USAGE:
//   mcsetl run          - Fetch, normalize and upload the production table
//   mcsetl validate     - Check settings and lookup tables without processing
//   mcsetl version      - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Fetching, normalization, validation and upload
//   - pkg/           : Local file helpers
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/mineral-stats-etl/cmd"
)

func main() {
	cmd.Execute()
}
