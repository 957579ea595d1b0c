package gemini

// inputTokenPrices maps model names to USD per million input tokens.
// Unknown models fall back to the flash price.
var inputTokenPrices = map[string]float64{
	"gemini-3-flash-preview": 0.075,
	"gemini-3-pro-preview":   1.25,
	"gemini-2.5-flash":       0.075,
	"gemini-2.5-pro":         1.25,
}

const defaultInputTokenPrice = 0.075

// PriceFor returns the per-million-input-token price for a model.
func PriceFor(model string) float64 {
	if price, ok := inputTokenPrices[model]; ok {
		return price
	}
	return defaultInputTokenPrice
}

// CostOf computes the estimated cost of a call from its input tokens.
func CostOf(inputTokens int, pricePerMillion float64) float64 {
	return float64(inputTokens) / 1_000_000 * pricePerMillion
}
