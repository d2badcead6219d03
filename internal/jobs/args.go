// Package jobs provides River job workers for async processing tasks.
package jobs

// FootprintEmbeddingArgs contains the arguments for a footprint embedding job.
type FootprintEmbeddingArgs struct {
	// FootprintID is the footprint whose embedding should be generated.
	FootprintID string `json:"footprint_id"`

	// ImagePath locates the footprint image on disk.
	ImagePath string `json:"image_path"`
}

// Kind returns the job type identifier for River
func (FootprintEmbeddingArgs) Kind() string { return "footprint_embedding" }
