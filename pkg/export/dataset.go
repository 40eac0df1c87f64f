package export

// Dataset defines tabular export content shared by all renderers.
// Rows are keyed by header name so report builders can emit sparse cells.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}
