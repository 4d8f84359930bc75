package slots

// systemPrompt is the strict output contract for slot filling. The model is
// told to emit raw JSON only; a fence-wrapped reply is still tolerated on
// the parsing side because instruction-following is not guaranteed.
const systemPrompt = "You are a slot-filling assistant. " +
	"Parse the user's question and return ONLY a JSON object " +
	"with keys: intent, turbine_id, and optionally log_date (ISO YYYY-MM-DD). " +
	"DO NOT wrap your JSON in markdown or add any commentary."
