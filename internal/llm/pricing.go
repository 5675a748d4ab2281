package llm

import "sort"

// ModelPricing holds per-1k-token prices in USD for one model.
type ModelPricing struct {
	Model            string  `json:"model"`
	InputPricePer1K  float64 `json:"input_price_per_1k_tokens"`
	OutputPricePer1K float64 `json:"output_price_per_1k_tokens"`
	Description      string  `json:"description"`
}

// pricingTable maps model names to prices. Unknown models fall back to
// defaultPricing so cost accounting never fails a request.
var pricingTable = map[string]ModelPricing{
	"gpt-4o":        {Model: "gpt-4o", InputPricePer1K: 0.0025, OutputPricePer1K: 0.01, Description: "Flagship multimodal model"},
	"gpt-4o-mini":   {Model: "gpt-4o-mini", InputPricePer1K: 0.00015, OutputPricePer1K: 0.0006, Description: "Fast and efficient, good for most tasks"},
	"gpt-4-turbo":   {Model: "gpt-4-turbo", InputPricePer1K: 0.01, OutputPricePer1K: 0.03, Description: "GPT-4 class model, faster and cheaper"},
	"gpt-3.5-turbo": {Model: "gpt-3.5-turbo", InputPricePer1K: 0.0015, OutputPricePer1K: 0.002, Description: "Legacy fast model"},

	"claude-haiku-4-5-20251001": {Model: "claude-haiku-4-5-20251001", InputPricePer1K: 0.001, OutputPricePer1K: 0.005, Description: "Fast Anthropic model"},
}

// defaultPricing is used when the model is not present in pricingTable.
var defaultPricing = ModelPricing{
	Model:            "default",
	InputPricePer1K:  0.0015,
	OutputPricePer1K: 0.002,
	Description:      "AI language model",
}

// EstimateTokens approximates the token count of text.
// Rough estimation: 1 token is about 4 characters of English text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// CalculateCost computes the USD cost of a call from token counts and model.
func CalculateCost(promptTokens, completionTokens int, model string) float64 {
	pricing, ok := pricingTable[model]
	if !ok {
		pricing = defaultPricing
	}
	inputCost := float64(promptTokens) / 1000 * pricing.InputPricePer1K
	outputCost := float64(completionTokens) / 1000 * pricing.OutputPricePer1K
	return inputCost + outputCost
}

// PricingInfo returns the pricing rows for all known models.
func PricingInfo() []ModelPricing {
	rows := make([]ModelPricing, 0, len(pricingTable))
	for _, p := range pricingTable {
		rows = append(rows, p)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Model < rows[j].Model })
	return rows
}
