package dto

// CreateExportRequest asks for a directory item export in one format.
type CreateExportRequest struct {
	Format string `json:"format" binding:"required"`
}
