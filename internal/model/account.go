package model

import "strconv"

// Account is a tenant record. Field names mirror the Identity Gateway's
// JSON so a fetched record can be cached and returned verbatim.
//
// A record produced by MinimalAccount only carries ID and Lineage; every
// other field is zero-valued. Callers must not read the remaining fields
// unless the record was fetched from the gateway.
type Account struct {
	ID               string           `json:"id"`
	Lineage          string           `json:"lineage"` // opaque ancestor chain, copied verbatim
	Status           string           `json:"status"`
	Name             string           `json:"name"`
	Address          AccountAddress   `json:"address"`
	AccountOwner     AccountOwner     `json:"account_owner"`
	Fax              *string          `json:"fax"`
	Phone            *string          `json:"phone"`
	Website          *string          `json:"website"`
	Logo             string           `json:"logo"`
	UsageLimits      UsageLimits      `json:"usage_limits"`
	LastActivityOn   float64          `json:"last_activity_on"`
	CreatedOn        float64          `json:"created_on"`
	Partner          bool             `json:"partner"`
	Organization     bool             `json:"organization"`
	StripeCustomerID string           `json:"stripe_customer_id"`
	Overrides        AccountOverrides `json:"overrides"`
	Metadata         AccountMetadata  `json:"metadata"`
}

// AccountAddress is the postal address of an account.
type AccountAddress struct {
	Address1   string  `json:"address1"`
	Address2   *string `json:"address2"`
	City       string  `json:"city"`
	Country    string  `json:"country"`
	Province   string  `json:"province"`
	PostalCode string  `json:"postal_code"`
}

// AccountOwner points at the owning user, when there is one.
type AccountOwner struct {
	UserID *float64 `json:"user_id"`
}

// UsageLimits holds plan quotas and feature flags. Quotas are JSON
// numbers and may be fractional.
type UsageLimits struct {
	StartsOn                    float64  `json:"starts_on"`
	PerCampaign                 float64  `json:"per_campaign"`
	PerMonth                    float64  `json:"per_month"`
	Remaining                   *float64 `json:"remaining"`
	MaximumContacts             float64  `json:"maximum_contacts"`
	Lists                       float64  `json:"lists"`
	Users                       float64  `json:"users"`
	CampaignBlueprints          float64  `json:"campaign_blueprints"`
	AutomationConditions        float64  `json:"automation_conditions"`
	UseABSplit                  bool     `json:"use_ab_split"`
	UseAutomationConditions     bool     `json:"use_automation_conditions"`
	UseAutomations              bool     `json:"use_automations"`
	UseAutomationCustomWebhooks bool     `json:"use_automation_customwebhooks"`
	UseBehavioralSegmentation   bool     `json:"use_behavioral_segmentation"`
	UseBrand                    bool     `json:"use_brand"`
	UseCampaignBlueprints       bool     `json:"use_campaign_blueprints"`
	UseContactExport            bool     `json:"use_contact_export"`
	UseCustomMergeTags          bool     `json:"use_custom_merge_tags"`
	UseEmailAPI                 bool     `json:"use_email_api"`
	UseHTMLEditor               bool     `json:"use_html_editor"`
	UseListRedirection          bool     `json:"use_list_redirection"`
	UseSmartEmailResource       bool     `json:"use_smart_email_resource"`
	UseSmartBlueprint           bool     `json:"use_smart_blueprint"`
	UseTagsInAutomation         bool     `json:"use_tags_in_automation"`
	UseTags                     bool     `json:"use_tags"`
	InsertResellerLogo          bool     `json:"insert_reseller_logo"`
}

// AccountOverrides are per-account feature overrides.
type AccountOverrides struct {
	BypassRecaptcha       bool `json:"bypass_recaptcha"`
	InjectAddress         bool `json:"inject_address"`
	InjectUnsubscribeLink bool `json:"inject_unsubscribe_link"`
}

// AccountMetadata is free-form; only use_html_editor has a known meaning.
type AccountMetadata map[string]any

// UseHTMLEditor reports the use_html_editor flag.
func (m AccountMetadata) UseHTMLEditor() bool {
	v, _ := m["use_html_editor"].(bool)
	return v
}

// MinimalAccount builds the self-access account straight from verified
// claims. No network or cache is involved.
func MinimalAccount(c *Claims) *Account {
	return &Account{
		ID:       strconv.FormatInt(c.AccountID, 10),
		Lineage:  c.Lineage,
		Status:   "active",
		Metadata: AccountMetadata{"use_html_editor": false},
	}
}
