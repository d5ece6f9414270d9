package chat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BTreeMap/TaxPro/internal/models"
)

// Kind identifies a parsed chat command.
type Kind int

const (
	KindUnknown Kind = iota
	KindHelp
	KindMenu
	KindNumber
	KindOptimize
	KindContact
	KindSubmit
	KindGlossary
)

// Command is one parsed inbound message.
type Command struct {
	Kind    Kind
	Number  int
	Profile models.TaxProfile
	Field   string
	Value   string
	Term    string
}

// optimizeKeys maps the accepted optimize arguments to profile setters.
var optimizeKeys = map[string]func(p *models.TaxProfile, v float64){
	"income":    func(p *models.TaxProfile, v float64) { p.TaxableIncome = v },
	"rent":      func(p *models.TaxProfile, v float64) { p.RentPaid = v },
	"80c":       func(p *models.TaxProfile, v float64) { p.Investment80C = v },
	"insurance": func(p *models.TaxProfile, v float64) { p.HealthInsurance = v },
}

// Parse interprets a message. Keywords are case-insensitive; contact values
// keep their original case.
func Parse(text string) (Command, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Command{Kind: KindHelp}, nil
	}
	fields := strings.Fields(text)
	keyword := strings.ToLower(fields[0])
	rest := strings.TrimSpace(text[len(fields[0]):])

	if n, err := strconv.Atoi(keyword); err == nil && len(fields) == 1 {
		return Command{Kind: KindNumber, Number: n}, nil
	}

	switch keyword {
	case "help", "hi", "hello", "start":
		return Command{Kind: KindHelp}, nil
	case "menu", "back", "home":
		return Command{Kind: KindMenu}, nil
	case "submit", "book":
		return Command{Kind: KindSubmit}, nil
	case "glossary", "define":
		return Command{Kind: KindGlossary, Term: rest}, nil
	case "optimize", "optimise":
		p, err := parseProfile(fields[1:])
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: KindOptimize, Profile: p}, nil
	case models.ContactFieldName, models.ContactFieldEmail, models.ContactFieldDate, models.ContactFieldTime:
		if rest == "" {
			return Command{}, fmt.Errorf("%s needs a value, e.g. '%s'", keyword, contactExample(keyword))
		}
		return Command{Kind: KindContact, Field: keyword, Value: rest}, nil
	}
	return Command{Kind: KindUnknown}, nil
}

func parseProfile(args []string) (models.TaxProfile, error) {
	var p models.TaxProfile
	if len(args) == 0 {
		return p, fmt.Errorf("optimize needs values, e.g. '%s'", optimizeExample)
	}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return p, fmt.Errorf("expected key=value, got %q", arg)
		}
		key = strings.ToLower(key)
		if key == "hra" {
			claimed, err := parseYesNo(value)
			if err != nil {
				return p, err
			}
			p.HRAClaimed = claimed
			continue
		}
		set, ok := optimizeKeys[key]
		if !ok {
			return p, fmt.Errorf("unknown optimize value %q", key)
		}
		amount, err := parseAmount(value)
		if err != nil {
			return p, fmt.Errorf("%s: %w", key, err)
		}
		set(&p, amount)
	}
	return p, nil
}

// parseAmount accepts plain numbers with optional ₹ and thousands separators.
func parseAmount(s string) (float64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "₹")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not an amount", s)
	}
	return v, nil
}

func parseYesNo(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y", "true", "1":
		return true, nil
	case "no", "n", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("hra must be yes or no, got %q", s)
}

const optimizeExample = "optimize income=1500000 rent=120000 80c=50000 insurance=0 hra=no"

func contactExample(field string) string {
	switch field {
	case models.ContactFieldEmail:
		return "email you@example.com"
	case models.ContactFieldDate:
		return "date 2025-08-01"
	case models.ContactFieldTime:
		return "time 11:00"
	default:
		return "name Anil Kumar"
	}
}
