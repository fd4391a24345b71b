package models

// Raw shapes of the JSON the model is instructed to return. Fields are
// pointers where a missing value must be distinguishable from a zero value.

type ModelCategorization struct {
	Category    *string  `json:"category"`
	Confidence  *float64 `json:"confidence"`
	Explanation *string  `json:"explanation"`
}

type ModelBatchItem struct {
	InputText   *string  `json:"inputText"`
	Category    *string  `json:"category"`
	Confidence  *float64 `json:"confidence"`
	Explanation *string  `json:"explanation"`
}

type ModelBatchCategorization struct {
	Results []ModelBatchItem `json:"results"`
}
