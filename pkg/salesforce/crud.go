package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// CreateAccount creates a new Account with the given name and returns the new
// Salesforce ID.
func CreateAccount(ctx context.Context, c Client, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", eris.New("sf: account Name is required")
	}
	id, err := c.InsertOne(ctx, "Account", map[string]any{"Name": name})
	if err != nil {
		return "", eris.Wrap(err, "sf: create account")
	}
	return id, nil
}

// FindOrCreateAccount returns the ID of the Account named name, creating it
// when none exists.
func FindOrCreateAccount(ctx context.Context, c Client, name string) (string, error) {
	acct, err := FindAccountByName(ctx, c, name)
	if err != nil {
		return "", err
	}
	if acct != nil {
		return acct.ID, nil
	}
	return CreateAccount(ctx, c, name)
}

// CreateContact creates a new Contact and returns the new Salesforce ID. An
// empty accountID creates a private contact.
func CreateContact(ctx context.Context, c Client, accountID string, contact NewContact) (string, error) {
	if contact.LastName == "" {
		return "", eris.New("sf: contact LastName is required")
	}
	fields := contact.fields()
	setIf(fields, "AccountId", accountID)
	id, err := c.InsertOne(ctx, "Contact", fields)
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("sf: create contact %s", contact.LastName))
	}
	return id, nil
}

// UpdateContact updates a Contact record with the given fields.
func UpdateContact(ctx context.Context, c Client, contactID string, fields map[string]any) error {
	if contactID == "" {
		return eris.New("sf: contact id is required")
	}
	if len(fields) == 0 {
		return eris.New("sf: no fields to update")
	}
	if err := c.UpdateOne(ctx, "Contact", contactID, fields); err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: update contact %s", contactID))
	}
	return nil
}

// CreateOpportunity creates a new Opportunity and returns the new Salesforce ID.
func CreateOpportunity(ctx context.Context, c Client, opp Opportunity) (string, error) {
	if opp.Name == "" || opp.StageName == "" {
		return "", eris.New("sf: opportunity Name and StageName are required")
	}
	if opp.CloseDate.IsZero() {
		return "", eris.New("sf: opportunity CloseDate is required")
	}
	id, err := c.InsertOne(ctx, "Opportunity", opp.fields())
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("sf: create opportunity %s", opp.Name))
	}
	return id, nil
}

// AddContactRole links a Contact to an Opportunity as its primary contact.
func AddContactRole(ctx context.Context, c Client, opportunityID, contactID string) error {
	_, err := c.InsertOne(ctx, "OpportunityContactRole", map[string]any{
		"OpportunityId": opportunityID,
		"ContactId":     contactID,
		"IsPrimary":     true,
	})
	return eris.Wrap(err, fmt.Sprintf("sf: add contact role %s", opportunityID))
}

// UpdateOpportunityStage moves an Opportunity to stageName.
func UpdateOpportunityStage(ctx context.Context, c Client, opportunityID, stageName string) error {
	if opportunityID == "" {
		return eris.New("sf: opportunity id is required")
	}
	if err := c.UpdateOne(ctx, "Opportunity", opportunityID, map[string]any{"StageName": stageName}); err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: update opportunity stage %s", opportunityID))
	}
	return nil
}

// CreateTask creates a single Task and returns the new Salesforce ID.
func CreateTask(ctx context.Context, c Client, task Task) (string, error) {
	if task.Subject == "" {
		return "", eris.New("sf: task Subject is required")
	}
	id, err := c.InsertOne(ctx, "Task", task.fields())
	if err != nil {
		return "", eris.Wrap(err, "sf: create task")
	}
	return id, nil
}
