package app

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"gbp_responder/internal/domain"
)

const defaultGenTimeout = 20 * time.Second

// Generator produces reply drafts for reviews. A backend failure, timeout or
// empty completion is recovered with deterministic fallback text keyed by
// rating, so Draft always returns a usable reply.
type Generator struct {
	completer domain.Completer
	timeout   time.Duration
}

func NewGenerator(c domain.Completer, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = defaultGenTimeout
	}
	return &Generator{completer: c, timeout: timeout}
}

// Ready reports whether a generation backend is configured.
func (g *Generator) Ready() bool { return g != nil && g.completer != nil }

func (g *Generator) Draft(ctx context.Context, rv domain.Review, st domain.AutomationSettings) domain.Draft {
	conf := Confidence(rv.Rating, rv.Text)
	if g.completer == nil {
		return domain.Draft{Text: FallbackText(rv.Rating), Confidence: conf, Fallback: true}
	}

	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.completer.Complete(cctx, systemPrompt(st), BuildPrompt(rv, st))
	out = strings.TrimSpace(out)
	if err != nil || out == "" {
		log.Warn().Err(err).Str("review", rv.ID).Int("rating", rv.Rating).
			Msg("generation failed, using fallback text")
		return domain.Draft{Text: FallbackText(rv.Rating), Confidence: conf, Fallback: true}
	}
	return domain.Draft{Text: Sanitize(out), Confidence: conf}
}

func systemPrompt(st domain.AutomationSettings) string {
	return fmt.Sprintf("You are a professional customer service representative responding to "+
		"Google reviews for %s. Be genuine, helpful, and maintain a positive brand image. "+
		"Keep responses concise and under 150 words.", st.Business.Name)
}

// BuildPrompt embeds the business profile, the review, and a rating-specific
// strategy hint into the user prompt.
func BuildPrompt(rv domain.Review, st domain.AutomationSettings) string {
	comment := rv.Text
	if comment == "" {
		comment = "No comment provided"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a %s response to this Google Business Profile review:\n\n", st.Tone)
	b.WriteString("Business Information:\n")
	fmt.Fprintf(&b, "- Name: %s\n", st.Business.Name)
	fmt.Fprintf(&b, "- Type: %s\n", st.Business.Type)
	fmt.Fprintf(&b, "- Values: %s\n\n", st.Business.Values)
	b.WriteString("Review Details:\n")
	fmt.Fprintf(&b, "- Rating: %d/5 stars\n", rv.Rating)
	fmt.Fprintf(&b, "- Comment: %q\n", comment)
	fmt.Fprintf(&b, "- Reviewer: %s\n\n", rv.DisplayName())
	b.WriteString("Response Requirements:\n")
	fmt.Fprintf(&b, "- Tone: %s\n", st.Tone)
	fmt.Fprintf(&b, "- Template: %s\n", st.ResponseTemplate)
	fmt.Fprintf(&b, "- Language: %s\n", st.Language)
	b.WriteString("- Length: 50-150 words\n")
	fmt.Fprintf(&b, "- %s\n", ResponseStrategy(rv.Rating))
	b.WriteString("- Address specific points mentioned in the review\n")
	b.WriteString("- Include gratitude for the feedback\n\n")
	b.WriteString("Generate only the response text, no additional formatting or quotes.")
	return b.String()
}

// ResponseStrategy returns the instruction hint for a rating; 3 is the
// default for anything outside 1..5.
func ResponseStrategy(rating int) string {
	switch rating {
	case 5:
		return "Express genuine gratitude and enthusiasm for their positive experience"
	case 4:
		return "Thank them warmly and show appreciation for their positive feedback"
	case 2:
		return "Apologize for their disappointing experience and offer to make improvements"
	case 1:
		return "Sincerely apologize and actively offer to resolve their concerns directly"
	default:
		return "Acknowledge their feedback professionally and show commitment to improvement"
	}
}

// FallbackText returns the canned reply for a rating; 3 is the default for
// anything outside 1..5.
func FallbackText(rating int) string {
	switch rating {
	case 5:
		return "Thank you so much for the wonderful 5-star review! We're thrilled that you had such a positive experience. Your feedback means the world to our team, and we look forward to serving you again soon!"
	case 4:
		return "Thank you for the great 4-star review! We're so glad you had a positive experience. We appreciate your feedback and look forward to welcoming you back soon!"
	case 2:
		return "Thank you for your feedback. We're sorry to hear that your experience didn't meet your expectations. We take all feedback seriously and would love the opportunity to make things right. Please contact us directly so we can address your concerns."
	case 1:
		return "We sincerely apologize for the poor experience you had. This is not the level of service we strive to provide. Please contact us directly so we can address your concerns and make this right. Your feedback is valuable in helping us improve."
	default:
		return "Thank you for taking the time to leave us a review. We appreciate your feedback and are always looking for ways to improve our service. We'd love the opportunity to exceed your expectations on your next visit!"
	}
}

var sentimentKeywords = []string{
	"great", "excellent", "amazing", "wonderful", "fantastic",
	"terrible", "awful", "horrible", "worst", "never",
}

// Confidence scores how confidently a reply can be drafted for this review.
// Clamped to [0.30, 0.95]; informational only.
func Confidence(rating int, text string) float64 {
	c := 0.75
	if rating == 5 || rating == 1 {
		c += 0.15
	}
	if rating == 3 {
		c -= 0.10 // neutral reviews are trickier
	}
	if len(text) > 50 {
		c += 0.10
	}
	if len(text) < 10 {
		c -= 0.15
	}
	low := strings.ToLower(text)
	for _, kw := range sentimentKeywords {
		if strings.Contains(low, kw) {
			c += 0.05
			break
		}
	}
	if c > 0.95 {
		c = 0.95
	}
	if c < 0.30 {
		c = 0.30
	}
	return c
}

var (
	reContactMe = regexp.MustCompile(`(?i)\b(contact|call|email)\s+me\b`)
	rePersonal  = regexp.MustCompile(`(?i)\b(my|personal)\s+(phone|email|number)\b`)
	reFirstAux  = regexp.MustCompile(`(?i)\b(I|me)\s+(will|can|would)\b`)
	reFirst     = regexp.MustCompile(`\bI\s+`)
)

// Sanitize rewrites first-person singular and personal-contact phrasing into
// the business voice before a draft is posted.
func Sanitize(s string) string {
	s = reContactMe.ReplaceAllString(s, "contact us")
	s = rePersonal.ReplaceAllString(s, "our business contact")
	s = reFirstAux.ReplaceAllString(s, "we $2")
	s = reFirst.ReplaceAllString(s, "We ")
	return strings.TrimSpace(s)
}
