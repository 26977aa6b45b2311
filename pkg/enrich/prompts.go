package enrich

import "fmt"

const systemPrompt = "You assist with live speech transcripts. Transcripts come from a speech recognizer and may contain recognition errors."

func analyzePrompt(transcription, question string) Prompt {
	return Prompt{
		System: systemPrompt,
		User: fmt.Sprintf(`Answer the question using only the transcript. Answer in the language of the question.
Return a JSON object: {"answer": string, "confidence": number between 0 and 1, "relatedTopics": [string]}.

Transcript:
%s

Question: %s`, transcription, question),
		JSON: true,
	}
}

func summaryPrompt(transcription string) Prompt {
	return Prompt{
		System: systemPrompt,
		User: fmt.Sprintf(`Summarize the transcript in the language it is written in, keeping the key points.
Return a JSON object: {"summary": string}.

Transcript:
%s`, transcription),
		JSON: true,
	}
}

func detectPrompt(text string) Prompt {
	return Prompt{
		System: systemPrompt,
		User: fmt.Sprintf(`Identify the language of the text.
Return a JSON object: {"language": display name such as "Português (Brasil)", "confidence": number between 0 and 1, "languageCode": BCP 47 tag such as "pt-BR"}.

Text:
%s`, text),
		JSON: true,
	}
}

func enhancePrompt(text, targetLanguage string) Prompt {
	return Prompt{
		System: systemPrompt,
		User: fmt.Sprintf(`Fix grammar, punctuation and obvious recognition errors in the text, which is in %s. Do not add content and do not translate.
Return a JSON object: {"enhancedText": string, "corrections": [string], "confidence": number between 0 and 1}.

Text:
%s`, targetLanguage, text),
		JSON: true,
	}
}
