package pipeline

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// VisionAttributes is what the vision stage extracts from the uploaded
// photo: the parts of the product that must survive the re-render intact.
type VisionAttributes struct {
	ProductType            string   `json:"product_type"`
	ImmutableElements      []string `json:"immutable_elements"`
	DistinguishingFeatures []string `json:"distinguishing_features"`
	Raw                    string   `json:"-"`
}

// ConceptSlots are the template fields the concept stage fills in.
type ConceptSlots struct {
	Description     string `json:"description"`
	Background      string `json:"background"`
	Lighting        string `json:"lighting"`
	CameraAngle     string `json:"camera_angle"`
	ShowcaseFeature string `json:"showcase_feature"`
	KeyDetail       string `json:"key_detail"`
	AspectRatio     string `json:"aspect_ratio"`
	Summary         string `json:"summary"`
}

const defaultConceptPhrase = "Clean studio product shot"

func buildVisionPrompt(title string) string {
	sb := &strings.Builder{}
	sb.WriteString("You are a product photography analyst. Look at the attached product photo and extract the attributes that must never change in a re-render. ")
	sb.WriteString("Respond strictly with JSON matching this schema: ")
	sb.WriteString(`{"product_type":string,"immutable_elements":string[],"distinguishing_features":string[]}`)
	fmt.Fprintf(sb, ". immutable_elements covers shape, logos, printed text and colorway. The product title is %q. No commentary outside the JSON.", title)
	return sb.String()
}

func buildConceptPrompt(title string, attrs VisionAttributes, userConcept string) string {
	sb := &strings.Builder{}
	sb.WriteString("You are a studio art director planning a product photograph. Respond strictly with JSON matching this schema: ")
	sb.WriteString(`{"description":string,"background":string,"lighting":string,"camera_angle":string,"showcase_feature":string,"key_detail":string,"aspect_ratio":string,"summary":string}`)
	fmt.Fprintf(sb, ". Product title: %q. Product type: %q. Immutable elements: %s. Distinguishing features: %s.",
		title, attrs.ProductType, joinList(attrs.ImmutableElements), joinList(attrs.DistinguishingFeatures))
	if userConcept != "" {
		fmt.Fprintf(sb, " The customer asked for: %q; honor it where possible.", userConcept)
	}
	sb.WriteString(" summary is one short line describing the final shot. Never include instructions that alter the product's text, logo or shape. No commentary outside the JSON.")
	return sb.String()
}

func buildImageEditPrompt(title string, attrs VisionAttributes, slots ConceptSlots) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "Re-render this product photo of %q as a professional studio shot. ", title)
	fmt.Fprintf(sb, "Scene: %s. Background: %s. Lighting: %s. Camera angle: %s. Showcase: %s. Key detail: %s.",
		coalesce(slots.Description, defaultConceptPhrase), slots.Background, slots.Lighting, slots.CameraAngle, slots.ShowcaseFeature, slots.KeyDetail)
	if len(attrs.ImmutableElements) > 0 {
		fmt.Fprintf(sb, " Keep these elements exactly as they are: %s.", joinList(attrs.ImmutableElements))
	}
	sb.WriteString(" Do not alter the product's shape, logo, printed text or colors in any way.")
	sb.WriteString(" Do not add any text, watermark, caption or graphic overlay to the image.")
	return sb.String()
}

func defaultVisionAttributes(raw string) VisionAttributes {
	return VisionAttributes{
		ImmutableElements:      []string{},
		DistinguishingFeatures: []string{},
		Raw:                    raw,
	}
}

func defaultConceptSlots(userConcept string) ConceptSlots {
	description := defaultConceptPhrase
	if userConcept != "" {
		description = cases.Title(language.Und).String(userConcept)
	}
	return ConceptSlots{
		Description:     description,
		Background:      "seamless neutral backdrop",
		Lighting:        "soft diffused studio lighting",
		CameraAngle:     "eye-level front view",
		ShowcaseFeature: "overall product form",
		KeyDetail:       "true-to-life colors",
		AspectRatio:     "1:1",
	}
}

func joinList(items []string) string {
	if len(items) == 0 {
		return "none listed"
	}
	return strings.Join(items, ", ")
}
