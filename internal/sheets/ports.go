package sheets

import (
	"context"

	"finctl/internal/export"
)

// Ports for outbound adapters.
type (
	// ReportWriter publishes a computed report and returns where it landed.
	ReportWriter interface {
		WriteReport(ctx context.Context, rep export.Report) (ref string, err error)
	}
)
