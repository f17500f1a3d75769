// Package i18n renders user-facing messages in the monitoring owner's
// language. Message composition is pure: it never touches monitoring state.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"visitbot/internal/monitor"
)

// MaxListedTerms caps how many matches a notification enumerates; the header
// still reports the full count.
const MaxListedTerms = 5

func init() {
	for _, s := range []struct{ key, pl string }{
		{"Found %d open slots for %s:", "Znaleziono %d wolnych terminów na %s:"},
		{"%d. %s — %s, %s", "%d. %s — %s, %s"},
		{"Your session was rejected by the reservation service. Please log in again; all your monitorings have been paused.", "Serwis rezerwacji odrzucił Twoją sesję. Zaloguj się ponownie; wszystkie Twoje monitoringi zostały wstrzymane."},
		{"Booked: %s on %s with %s.", "Zarezerwowano: %s dnia %s u %s."},
		{"That slot is no longer available. Run a new search to see current terms.", "Ten termin nie jest już dostępny. Wykonaj nowe wyszukiwanie, aby zobaczyć aktualne terminy."},
		{"You already have %d active monitorings, which is the maximum. Remove one before adding another.", "Masz już %d aktywnych monitoringów, to maksimum. Usuń jeden, zanim dodasz kolejny."},
		{"Monitoring for %s expired without finding a slot and has been retired.", "Monitoring na %s wygasł bez znalezienia terminu i został wyłączony."},
	} {
		_ = message.SetString(language.Polish, s.key, s.pl)
	}
}

// Messages is a per-language bundle of the templates the scheduler and the
// booking coordinator send.
type Messages struct {
	p *message.Printer
}

// For returns the message bundle for a language tag, falling back to English
// when the tag is empty or unknown.
func For(lang string) *Messages {
	tag := language.English
	if lang != "" {
		if t, err := language.Parse(lang); err == nil {
			tag = t
		}
	}
	return &Messages{p: message.NewPrinter(tag)}
}

func (m *Messages) MatchHeader(serviceName string, count int) string {
	return m.p.Sprintf("Found %d open slots for %s:", count, serviceName)
}

func (m *Messages) MatchEntry(index int, t monitor.Term) string {
	return m.p.Sprintf("%d. %s — %s, %s",
		index, t.StartAt.Format("Mon 2006-01-02 15:04"), t.DoctorName, t.ClinicName)
}

// Matches renders the full match notification: header plus up to
// MaxListedTerms earliest entries.
func (m *Messages) Matches(serviceName string, terms []monitor.Term) string {
	var b strings.Builder
	b.WriteString(m.MatchHeader(serviceName, len(terms)))
	n := len(terms)
	if n > MaxListedTerms {
		n = MaxListedTerms
	}
	for i := 0; i < n; i++ {
		b.WriteString("\n")
		b.WriteString(m.MatchEntry(i+1, terms[i]))
	}
	return b.String()
}

func (m *Messages) InvalidCredentials() string {
	return m.p.Sprintf("Your session was rejected by the reservation service. Please log in again; all your monitorings have been paused.")
}

func (m *Messages) Booked(t monitor.Term, serviceName string) string {
	return m.p.Sprintf("Booked: %s on %s with %s.",
		serviceName, t.StartAt.Format("Mon 2006-01-02 15:04"), t.DoctorName)
}

func (m *Messages) Outdated() string {
	return m.p.Sprintf("That slot is no longer available. Run a new search to see current terms.")
}

func (m *Messages) LimitExceeded(max int) string {
	return m.p.Sprintf("You already have %d active monitorings, which is the maximum. Remove one before adding another.", max)
}

func (m *Messages) Expired(serviceName string) string {
	return m.p.Sprintf("Monitoring for %s expired without finding a slot and has been retired.", serviceName)
}
