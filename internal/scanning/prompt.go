package scanning

// documentScanPrompt is the shared prompt used by all LLM providers. It asks
// for the same response shape the Document AI processor returns.
const documentScanPrompt = `You are analyzing a photo of a document that has an expiry date or a deadline: an insurance policy, a bill or invoice, a contract, a driver's license, a vehicle technical inspection certificate, or similar. The document may be in Polish, English, Ukrainian or Russian. Carefully read all text in the image and extract the following information:

1. **Full text**: Transcribe all readable text, line by line, in reading order.

2. **Expiry date**: The date the document expires, stops being valid, or must be paid by. Look for labels like "ważne do", "data ważności", "zapłać do", "termin płatności", "valid until", "expires", "due date", "дійсне до", "действительно до". Copy the date exactly as printed into "mentionText" and also give it in ISO 8601 format (YYYY-MM-DD) in "normalizedValue.text".

3. **Document name**: A short title for the document, usually the heading (e.g. "Polisa OC", "Faktura VAT", "Prawo jazdy").

4. **Document type**: One of insurance, payment, agreement, driver_license, technical_inspection, other.

Return ONLY valid JSON in this exact format:
{
  "text": "full transcribed text",
  "entities": [
    {"type": "expiry_date", "mentionText": "02.02.2026", "confidence": 0.9, "normalizedValue": {"text": "2026-02-02"}},
    {"type": "document_name", "mentionText": "Faktura VAT", "confidence": 0.9},
    {"type": "document_type", "mentionText": "payment", "confidence": 0.9}
  ]
}

Important:
- "confidence" is a number between 0 and 1
- Leave out any entity you cannot find instead of guessing
- Do not include any text before or after the JSON
- Do not use markdown code blocks`
