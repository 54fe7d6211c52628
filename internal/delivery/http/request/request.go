package request

type SubmitHarvestRequest struct {
	Category string `json:"category"`
	Force    bool   `json:"force"`
}
