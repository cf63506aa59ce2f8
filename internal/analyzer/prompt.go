package analyzer

import "strings"

// BuildPrompt embeds the cohesive post summary into the compass instruction.
// The provider must answer with the JSON object only.
func BuildPrompt(cohesive string) string {
	var sb strings.Builder

	sb.WriteString("You are an expert in analyzing United States senator tweets. ")
	sb.WriteString("Your task is to take the following information from a given tweet and based off of all information and implied information, ")
	sb.WriteString("determine where on the political compass this tweet/this senator would fall.\n\n")

	sb.WriteString("Here is the information from the given tweet:\n")
	sb.WriteString(cohesive)
	sb.WriteString("\n\n")

	sb.WriteString("The political compass image you are using is a grid with a coordinate starting in the top left at (0,0) ")
	sb.WriteString("and a coordinate starting in the bottom right at (20,20). ")
	sb.WriteString("We need this to be precise, so use decimal places to the third position.\n\n")

	sb.WriteString("**IMPORTANT:** You must format your response *only* as a JSON object, with no other text before or after it. ")
	sb.WriteString("Use this exact structure:\n")
	sb.WriteString(`{
  "coordinates": {
    "x": 10.123,
    "y": 5.456
  },
  "keywords": "keyword one, keyword two, keyword three",
  "reasoning": "A brief, one-sentence explanation for the (x,y) placement based on the tweet's content."
}
`)
	return sb.String()
}
