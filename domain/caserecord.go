package domain

// Case is the slice of a legal case the pipeline needs: its owner, the
// process number queried against the docket service and the tribunal it is
// filed at. Full case records live in the case-management layer.
type Case struct {
	ID            string   `json:"id"`
	OwnerID       string   `json:"ownerId"`
	ProcessNumber string   `json:"processNumber"`
	Tribunal      Tribunal `json:"tribunal"`
	Monitored     bool     `json:"monitored"`
}
