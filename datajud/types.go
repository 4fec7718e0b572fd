package datajud

// searchRequest is the query envelope sent to the DataJud search endpoint.
type searchRequest struct {
	Query struct {
		Match struct {
			ProcessNumber string `json:"numeroProcesso"`
		} `json:"match"`
	} `json:"query"`
}

type rawComplement struct {
	Code        int    `json:"codigo"`
	Value       any    `json:"valor"`
	Name        string `json:"nome"`
	Description string `json:"descricao"`
}

type rawMovement struct {
	Code        int             `json:"codigo"`
	Name        string          `json:"nome"`
	Date        string          `json:"dataHora"`
	Complements []rawComplement `json:"complementosTabelados"`
}

// searchResponse mirrors the slice of the DataJud search envelope the
// pipeline reads: the first hit's process source with its movement list.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source struct {
				ProcessNumber string        `json:"numeroProcesso"`
				Tribunal      string        `json:"tribunal"`
				Movements     []rawMovement `json:"movimentos"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}
