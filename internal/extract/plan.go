package extract

import (
	"github.com/ianpcook/agent-crm/internal/model"
)

const maxTaskActions = 3

// Extract reads text into a plan. It never fails: text without any
// recognizable entity still yields a complete plan with empty collections.
// An explicit source other than auto is kept as the plan's source type;
// the interaction type always comes from the text.
func (e *Engine) Extract(text string, source model.SourceType) *model.ExtractionPlan {
	env := ParseEnvelope(text)

	kind := ClassifyInteraction(text)
	if source == "" || source == model.SourceAuto {
		source = sourceFor(kind)
	}

	var occurredAt *string
	if env != nil && env.Date != "" {
		d := env.Date
		occurredAt = &d
	}

	plan := &model.ExtractionPlan{
		SourceType:  source,
		ExtractedAt: e.now().UTC(),
		Contacts: model.Contacts{
			Names:     ExtractNames(text),
			Emails:    ExtractEmails(text),
			Phones:    ExtractPhones(text),
			Companies: ExtractCompanies(text),
		},
		Interaction: model.Interaction{
			Type:       kind,
			Direction:  DetectDirection(env),
			OccurredAt: occurredAt,
		},
		DealSignals:    DetectDealSignals(text),
		Money:          ExtractMoney(text),
		Dates:          ExtractDates(text),
		PotentialTasks: ExtractTasks(text),
		EmailMetadata:  env,
	}
	plan.SuggestedActions = suggestActions(plan)
	return plan
}

func sourceFor(kind model.InteractionType) model.SourceType {
	switch kind {
	case model.InteractionEmail:
		return model.SourceEmail
	case model.InteractionCall:
		return model.SourceCall
	case model.InteractionMeeting:
		return model.SourceMeeting
	default:
		return model.SourceNote
	}
}

// suggestActions derives the ranked action list: contacts, deal, stage,
// interaction, then tasks.
func suggestActions(p *model.ExtractionPlan) []model.SuggestedAction {
	actions := make([]model.SuggestedAction, 0, len(p.Contacts.Names)+3+maxTaskActions)

	single := len(p.Contacts.Names) == 1
	for _, n := range p.Contacts.Names {
		c := &model.ContactPayload{Name: n.Name, Role: n.Role, Company: n.Company}
		if single && len(p.Contacts.Emails) == 1 {
			c.Email = p.Contacts.Emails[0]
		}
		if single && len(p.Contacts.Phones) == 1 {
			c.Phone = p.Contacts.Phones[0]
		}
		actions = append(actions, model.SuggestedAction{Action: model.ActionContact, Contact: c})
	}

	if len(p.Money) > 0 {
		actions = append(actions, model.SuggestedAction{
			Action: model.ActionDeal,
			Deal: &model.DealPayload{
				Value:    p.Money[0].Value,
				Currency: p.Money[0].Currency,
				Signals:  p.DealSignals,
			},
		})
	}

	if len(p.DealSignals.StageHints) > 0 {
		actions = append(actions, model.SuggestedAction{
			Action: model.ActionDealStage,
			Stage:  &model.StagePayload{Stage: p.DealSignals.StageHints[0]},
		})
	}

	actions = append(actions, model.SuggestedAction{
		Action: model.ActionInteraction,
		Interaction: &model.InteractionPayload{
			Type:            p.Interaction.Type,
			Direction:       p.Interaction.Direction,
			OccurredAt:      p.Interaction.OccurredAt,
			SummaryRequired: true,
		},
	})

	for i, t := range p.PotentialTasks {
		if i == maxTaskActions {
			break
		}
		actions = append(actions, model.SuggestedAction{
			Action: model.ActionTask,
			Task:   &model.TaskPayload{Title: t.Title, DueHint: firstDateMention(t.Source)},
		})
	}
	return actions
}
