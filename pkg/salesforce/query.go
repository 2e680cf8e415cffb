package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Account represents a Salesforce Account record.
type Account struct {
	ID   string `json:"Id" salesforce:"Id"`
	Name string `json:"Name" salesforce:"Name"`
}

// Contact represents a Salesforce Contact record.
type Contact struct {
	ID        string `json:"Id" salesforce:"Id"`
	FirstName string `json:"FirstName" salesforce:"FirstName"`
	LastName  string `json:"LastName" salesforce:"LastName"`
	Email     string `json:"Email" salesforce:"Email"`
	Phone     string `json:"Phone" salesforce:"Phone"`
	Title     string `json:"Title" salesforce:"Title"`
	AccountID string `json:"AccountId" salesforce:"AccountId"`
}

// contactFields are the SOQL fields selected for Contact queries.
var contactFields = []string{"Id", "FirstName", "LastName", "Email", "Phone", "Title", "AccountId"}

// FindAccountByName queries Salesforce for an Account with exactly the given
// name. Returns nil if no account is found.
func FindAccountByName(ctx context.Context, c Client, name string) (*Account, error) {
	soql := fmt.Sprintf(
		"SELECT Id, Name FROM Account WHERE Name = '%s' ORDER BY CreatedDate LIMIT 1",
		escapeSoql(name),
	)

	var accounts []Account
	if err := c.Query(ctx, soql, &accounts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find account by name %s", name))
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

// FindContactByEmail queries Salesforce for a Contact with the given email.
// Returns nil if no contact is found.
func FindContactByEmail(ctx context.Context, c Client, email string) (*Contact, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Contact WHERE Email = '%s' ORDER BY CreatedDate LIMIT 1",
		strings.Join(contactFields, ", "),
		escapeSoql(email),
	)

	var contacts []Contact
	if err := c.Query(ctx, soql, &contacts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find contact by email %s", email))
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	return &contacts[0], nil
}

// FindContactByName queries Salesforce for a Contact by first and last name.
// Returns nil if no contact is found.
func FindContactByName(ctx context.Context, c Client, firstName, lastName string) (*Contact, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Contact WHERE FirstName = '%s' AND LastName = '%s' ORDER BY CreatedDate LIMIT 1",
		strings.Join(contactFields, ", "),
		escapeSoql(firstName),
		escapeSoql(lastName),
	)

	var contacts []Contact
	if err := c.Query(ctx, soql, &contacts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find contact %s %s", firstName, lastName))
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	return &contacts[0], nil
}

// contactRole is an OpportunityContactRole row.
type contactRole struct {
	OpportunityID string `json:"OpportunityId" salesforce:"OpportunityId"`
}

// FindOpenOpportunityForContact returns the ID of the most recently created
// open Opportunity the Contact has a role on, or "" when there is none.
func FindOpenOpportunityForContact(ctx context.Context, c Client, contactID string) (string, error) {
	soql := fmt.Sprintf(
		"SELECT OpportunityId FROM OpportunityContactRole WHERE ContactId = '%s' AND Opportunity.IsClosed = false ORDER BY Opportunity.CreatedDate DESC LIMIT 1",
		escapeSoql(contactID),
	)

	var roles []contactRole
	if err := c.Query(ctx, soql, &roles); err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("sf: find open opportunity for contact %s", contactID))
	}
	if len(roles) == 0 {
		return "", nil
	}
	return roles[0].OpportunityID, nil
}

var soqlEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// escapeSoql escapes backslashes and single quotes in SOQL string literals.
func escapeSoql(s string) string {
	return soqlEscaper.Replace(s)
}
