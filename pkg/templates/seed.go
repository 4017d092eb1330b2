// Package templates seeds the built-in contract templates on first
// start. Seeding is idempotent: once any template exists it is a no-op.
package templates

import (
	"time"

	"dealdesk/pkg/logger"
	"dealdesk/pkg/models"
	"dealdesk/pkg/store"
	"dealdesk/pkg/utils"
)

var builtin = []models.ContractTemplate{
	{
		Name:        "Split Sheet Agreement",
		Type:        "split-sheet",
		Description: "Define ownership percentages and revenue splits for collaborative music projects.",
		Template: models.TemplateBody{
			Fields: []models.TemplateField{
				{Name: "title", Label: "Song Title", Type: "text", Required: true},
				{Name: "releaseDate", Label: "Release Date", Type: "date"},
				{Name: "collaborators", Label: "Collaborators", Type: "array", Required: true},
				{Name: "performanceRoyalties", Label: "Performance Royalties", Type: "select", Required: true},
				{Name: "mechanicalRoyalties", Label: "Mechanical Royalties", Type: "select", Required: true},
				{Name: "additionalTerms", Label: "Additional Terms", Type: "textarea"},
			},
			LegalClauses: []string{
				"All parties agree to the ownership percentages as specified herein.",
				"Revenue splits shall be distributed according to the agreed percentages.",
				"Publishing rights shall be administered according to ownership shares.",
				"This agreement shall be governed by the laws of [State/Country].",
			},
		},
	},
	{
		Name:        "Performance Agreement",
		Type:        "performance",
		Description: "Secure bookings with venues, festivals, and event organizers.",
		Template: models.TemplateBody{
			Fields: []models.TemplateField{
				{Name: "title", Label: "Event Title", Type: "text", Required: true},
				{Name: "venue", Label: "Venue", Type: "text", Required: true},
				{Name: "eventDate", Label: "Event Date", Type: "datetime", Required: true},
				{Name: "performanceFee", Label: "Performance Fee", Type: "number", Required: true},
				{Name: "technicalRequirements", Label: "Technical Requirements", Type: "textarea"},
				{Name: "additionalTerms", Label: "Additional Terms", Type: "textarea"},
			},
			LegalClauses: []string{
				"Artist agrees to perform at the specified venue on the agreed date and time.",
				"Venue agrees to provide adequate sound system and technical support.",
				"Payment shall be made within 30 days of performance completion.",
				"Force majeure clause applies to unforeseen circumstances preventing performance.",
			},
		},
	},
	{
		Name:        "Producer Agreement",
		Type:        "producer",
		Description: "Establish terms for beat licensing, production credits, and royalties.",
		Template: models.TemplateBody{
			Fields: []models.TemplateField{
				{Name: "title", Label: "Track Title", Type: "text", Required: true},
				{Name: "producerName", Label: "Producer Name", Type: "text", Required: true},
				{Name: "beatPrice", Label: "Beat Price", Type: "number", Required: true},
				{Name: "royaltyPercentage", Label: "Royalty Percentage", Type: "number", Required: true},
				{Name: "creditRequirement", Label: "Credit Requirement", Type: "text", Required: true},
				{Name: "additionalTerms", Label: "Additional Terms", Type: "textarea"},
			},
			LegalClauses: []string{
				"Producer grants exclusive/non-exclusive rights to the beat as specified.",
				"Artist agrees to provide proper production credits as specified.",
				"Royalty payments shall be made according to the agreed percentage.",
				"Producer retains ownership of the underlying musical composition.",
			},
		},
	},
	{
		Name:        "Management Agreement",
		Type:        "management",
		Description: "Define roles and responsibilities with your artist manager or booking agent.",
		Template: models.TemplateBody{
			Fields: []models.TemplateField{
				{Name: "title", Label: "Agreement Title", Type: "text", Required: true},
				{Name: "managerName", Label: "Manager Name", Type: "text", Required: true},
				{Name: "commissionRate", Label: "Commission Rate", Type: "number", Required: true},
				{Name: "contractDuration", Label: "Contract Duration", Type: "text", Required: true},
				{Name: "responsibilities", Label: "Manager Responsibilities", Type: "textarea", Required: true},
				{Name: "additionalTerms", Label: "Additional Terms", Type: "textarea"},
			},
			LegalClauses: []string{
				"Manager agrees to provide professional representation and career guidance.",
				"Artist agrees to pay the specified commission rate on gross earnings.",
				"Either party may terminate this agreement with 30 days written notice.",
				"Manager shall act in the best interests of the artist at all times.",
			},
		},
	},
}

// Seed inserts the built-in templates when the template store is empty.
func Seed() error {
	existing, err := store.ListTemplates()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Info("templates_seed_skipped", "existing", len(existing))
		return nil
	}
	now := time.Now().UTC().UnixNano()
	for _, t := range builtin {
		t.ID = utils.GenTemplateID()
		t.Active = true
		t.CreatedTS = now
		if err := store.SaveTemplate(&t); err != nil {
			return err
		}
	}
	logger.Info("templates_seeded", "count", len(builtin))
	return nil
}
