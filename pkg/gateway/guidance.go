package gateway

import (
	"errors"
	"fmt"

	"github.com/papercomputeco/parley/pkg/provider"
)

const noCredentialGuidance = `❌ **API key not configured**

📝 **How to fix:**

1. Get a free OpenRouter key at [openrouter.ai/keys](https://openrouter.ai/keys)
2. Save it with ` + "`parley key set openrouter`" + `, or set ` + "`OPENROUTER_API_KEY`" + `
3. Send your message again

💡 Free models such as Google Gemini 2.0 Flash work without credits.`

const setupSteps = `📝 **Setup checklist:**
1. Save a valid **OpenRouter API key** (` + "`parley key set openrouter`" + `)
2. Pick a **free model** (Google Gemini 2.0 Flash)
3. Optionally save a **Gemini API key** for rate-limit fallback (` + "`parley key set gemini`" + `)`

// fix returns the remediation line for a failure kind.
func fix(kind provider.Kind) string {
	switch kind {
	case provider.KindInvalidKey:
		return "Check your API key: it was rejected by the provider."
	case provider.KindInsufficientCredits:
		return "Top up your balance on openrouter.ai or choose a free model."
	case provider.KindModelNotFound:
		return "Change the model in your configuration: the provider does not serve it."
	case provider.KindRateLimited:
		return "Rate limit exceeded. Wait a minute or choose another model."
	case provider.KindFallbackNotConfigured:
		return "Rate limit exceeded and no fallback is configured. Wait a minute, choose another model, or save a Gemini API key."
	case provider.KindFallbackFailed:
		return "Both providers failed. Wait a minute and try again, or choose another model."
	default:
		return "Check your internet connection and API key."
	}
}

// Guidance renders the markdown assistant message for a failed send.
func Guidance(err error) string {
	kind := provider.KindOf(err)
	if kind == provider.KindNoCredential {
		return noCredentialGuidance
	}

	return fmt.Sprintf("❌ **AI connection error**\n\n**Details:** %s%s\n\n**Fix:** %s\n\n---\n\n%s",
		details(err), primaryDetails(err), fix(kind), setupSteps)
}

// details is the human-readable failure, without the kind label.
func details(err error) string {
	var perr *provider.Error
	if !errors.As(err, &perr) {
		return err.Error()
	}

	msg := perr.Message
	if msg == "" && perr.Err != nil {
		msg = perr.Err.Error()
	}
	if msg == "" {
		msg = perr.Kind.String()
	}
	if perr.Provider != "" {
		msg = perr.Provider + ": " + msg
	}
	return msg
}

// primaryDetails names the rate-limited primary failure that led to the
// fallback, so a combined failure mentions both providers.
func primaryDetails(err error) string {
	var perr *provider.Error
	if !errors.As(err, &perr) || perr.Primary == nil {
		return ""
	}
	return "\n\n**Primary:** " + details(perr.Primary)
}

// toastFor returns the destructive toast for a failed send.
func toastFor(err error) Toast {
	if provider.KindOf(err) == provider.KindNoCredential {
		return Toast{
			Title:       "❌ API key not configured",
			Description: "Run `parley key set openrouter` or set OPENROUTER_API_KEY",
			Destructive: true,
		}
	}
	return Toast{
		Title:       "❌ API error",
		Description: details(err),
		Destructive: true,
	}
}
