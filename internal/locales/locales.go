// Package locales holds the notification wording for every supported language.
package locales

import (
	"regexp"
	"sort"
	"strings"
)

// Default is used whenever a requested locale is unknown.
const Default = "ro"

type SMS struct {
	Reminder string
	Expired  string
	Day      string
	Days     string
}

type Email struct {
	Subject            string
	SubjectExpired     string
	Urgent             string
	Greeting           string
	Title              string
	Intro              string
	RegistrationNumber string
	ExpirationDate     string
	TimeRemaining      string
	Expired            string
	Day                string
	Days               string
	WarningExpired     string
	ScheduleMessage    string
	ContactTitle       string
	Phone              string
	Email              string
	Regards            string
	Team               string
	Footer             string
}

type Translations struct {
	SMS   SMS
	Email Email
}

var table = map[string]Translations{
	"ro": {
		SMS: SMS{
			Reminder: "Buna ziua {{name}}! ITP pentru vehiculul {{licensePlate}} expira in {{days}} {{daysWord}} ({{date}}). Va rugam sa programati o noua inspectie la service-ul nostru.",
			Expired:  "Buna ziua {{name}}! ITP pentru vehiculul {{licensePlate}} a expirat la data {{date}}. Va rugam sa programati urgent o noua inspectie la service-ul nostru.",
			Day:      "zi",
			Days:     "zile",
		},
		Email: Email{
			Subject:            "Reminder ITP - {{licensePlate}}",
			SubjectExpired:     "ITP Expirat - {{licensePlate}}",
			Urgent:             "URGENT",
			Greeting:           "Buna ziua",
			Title:              "Reminder ITP",
			Intro:              "Va informam ca ITP pentru vehiculul dumneavoastra:",
			RegistrationNumber: "Numar inmatriculare",
			ExpirationDate:     "Data expirare",
			TimeRemaining:      "Timp ramas",
			Expired:            "EXPIRAT",
			Day:                "zi",
			Days:               "zile",
			WarningExpired:     "ATENTIE: ITP-ul dumneavoastra a expirat! Circulatia cu ITP expirat este ilegala si poate duce la penalizari.",
			ScheduleMessage:    "Va rugam sa programati o noua inspectie tehnica periodica cat mai curand posibil.",
			ContactTitle:       "Contact service",
			Phone:              "Telefon",
			Email:              "Email",
			Regards:            "Cu stima",
			Team:               "Echipa Service Auto",
			Footer:             "Acest email a fost trimis automat. Va rugam sa nu raspundeti la acest mesaj.",
		},
	},
	"en": {
		SMS: SMS{
			Reminder: "Hello {{name}}! ITP for vehicle {{licensePlate}} expires in {{days}} {{daysWord}} ({{date}}). Please schedule a new inspection at our service.",
			Expired:  "Hello {{name}}! ITP for vehicle {{licensePlate}} expired on {{date}}. Please urgently schedule a new inspection at our service.",
			Day:      "day",
			Days:     "days",
		},
		Email: Email{
			Subject:            "ITP Reminder - {{licensePlate}}",
			SubjectExpired:     "ITP Expired - {{licensePlate}}",
			Urgent:             "URGENT",
			Greeting:           "Hello",
			Title:              "ITP Reminder",
			Intro:              "We inform you that the ITP for your vehicle:",
			RegistrationNumber: "Registration number",
			ExpirationDate:     "Expiration date",
			TimeRemaining:      "Time remaining",
			Expired:            "EXPIRED",
			Day:                "day",
			Days:               "days",
			WarningExpired:     "WARNING: Your ITP has expired! Driving with expired ITP is illegal and may result in penalties.",
			ScheduleMessage:    "Please schedule a new periodic technical inspection as soon as possible.",
			ContactTitle:       "Service contact",
			Phone:              "Phone",
			Email:              "Email",
			Regards:            "Best regards",
			Team:               "Auto Service Team",
			Footer:             "This email was sent automatically. Please do not reply to this message.",
		},
	},
	"fr": {
		SMS: SMS{
			Reminder: "Bonjour {{name}}! Le controle technique pour le vehicule {{licensePlate}} expire dans {{days}} {{daysWord}} ({{date}}). Veuillez programmer une nouvelle inspection dans notre service.",
			Expired:  "Bonjour {{name}}! Le controle technique pour le vehicule {{licensePlate}} a expire le {{date}}. Veuillez programmer une nouvelle inspection de toute urgence.",
			Day:      "jour",
			Days:     "jours",
		},
		Email: Email{
			Subject:            "Rappel Controle Technique - {{licensePlate}}",
			SubjectExpired:     "Controle Technique Expire - {{licensePlate}}",
			Urgent:             "URGENT",
			Greeting:           "Bonjour",
			Title:              "Rappel Controle Technique",
			Intro:              "Nous vous informons que le controle technique de votre vehicule:",
			RegistrationNumber: "Numero d'immatriculation",
			ExpirationDate:     "Date d'expiration",
			TimeRemaining:      "Temps restant",
			Expired:            "EXPIRE",
			Day:                "jour",
			Days:               "jours",
			WarningExpired:     "ATTENTION: Votre controle technique a expire! Circuler avec un controle technique expire est illegal et peut entrainer des penalites.",
			ScheduleMessage:    "Veuillez programmer un nouveau controle technique periodique des que possible.",
			ContactTitle:       "Contact service",
			Phone:              "Telephone",
			Email:              "Email",
			Regards:            "Cordialement",
			Team:               "L'equipe Service Auto",
			Footer:             "Cet email a ete envoye automatiquement. Veuillez ne pas repondre a ce message.",
		},
	},
}

// Resolve maps a requested locale onto a supported one.
// "en-US" resolves to "en"; anything unknown resolves to Default.
func Resolve(locale string) string {
	l := strings.ToLower(strings.TrimSpace(locale))
	if _, ok := table[l]; ok {
		return l
	}
	if i := strings.IndexAny(l, "-_"); i > 0 {
		if _, ok := table[l[:i]]; ok {
			return l[:i]
		}
	}
	return Default
}

// Get returns the translations for locale, falling back to Default.
func Get(locale string) Translations {
	return table[Resolve(locale)]
}

// Supported lists the known locale codes in sorted order.
func Supported() []string {
	codes := make([]string, 0, len(table))
	for code := range table {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// IsSupported reports whether locale is a supported code, ignoring case.
func IsSupported(locale string) bool {
	_, ok := table[strings.ToLower(strings.TrimSpace(locale))]
	return ok
}

var placeholder = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Interpolate replaces {{key}} placeholders with vars. Unknown keys are left as-is.
func Interpolate(template string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		key := match[2 : len(match)-2]
		if v, ok := vars[key]; ok {
			return v
		}
		return match
	})
}
