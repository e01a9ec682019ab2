package llm

const (
	systemIntent   = "Respond with 'medical' or 'general'."
	promptIntent   = "Classify the intent of this input as 'medical' (symptom report or health-related) or 'general' (non-medical): '%s'"
	systemGeneral  = "You are a helpful assistant."
	promptGeneral  = "Answer this general question: %s"
	systemJSON     = "You are a medical assistant. Respond with JSON."
	systemJSONNull = "Respond with JSON or null."

	promptVague = `The user has provided a vague symptom description: '%s'.
Interpret this description and suggest likely medical symptoms that could be associated with it.
Return a list of symptoms in JSON format, e.g., {"symptoms": ["fever", "fatigue"]}.
If the input is too vague to determine specific symptoms, return {"symptoms": []}.`

	promptDuration = `Interpret this duration answer for the question: '%s'. Text: '%s'. Return JSON: {"value": number, "unit": "year/month/day/hour/week"} or null if unclear.`

	promptFreeText = `Interpret this free-text answer for the question: '%s'. Text: '%s'. Return JSON: {"item": "item_name", "choice": "yes/no/don't know"} or null if unclear.`

	promptYesNo = "Is this a yes/no question? Respond with 'yes' or 'no'. Question: '%s'"

	systemInsights = "You are a health assistant providing insights based on wearable device data."
	promptInsights = "Analyze the following wearable data and provide health insights and improvement tips: SpO2: %s%%, Heart Rate: %s bpm."
)
