package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// The schemas type every field the model structs decode, so a record that
// validates always decodes. Optional fields may also be null.
const accountSchemaJSON = `{
  "type": "object",
  "required": ["id", "lineage", "status", "name", "address", "usage_limits"],
  "properties": {
    "id": {"type": "string"},
    "lineage": {"type": "string"},
    "status": {"type": "string"},
    "name": {"type": "string"},
    "address": {
      "type": "object",
      "properties": {
        "address1": {"type": ["string", "null"]},
        "address2": {"type": ["string", "null"]},
        "city": {"type": ["string", "null"]},
        "country": {"type": ["string", "null"]},
        "province": {"type": ["string", "null"]},
        "postal_code": {"type": ["string", "null"]}
      }
    },
    "account_owner": {
      "type": ["object", "null"],
      "properties": {
        "user_id": {"type": ["number", "null"]}
      }
    },
    "fax": {"type": ["string", "null"]},
    "phone": {"type": ["string", "null"]},
    "website": {"type": ["string", "null"]},
    "logo": {"type": ["string", "null"]},
    "usage_limits": {
      "type": "object",
      "properties": {
        "starts_on": {"type": ["number", "null"]},
        "per_campaign": {"type": ["number", "null"]},
        "per_month": {"type": ["number", "null"]},
        "remaining": {"type": ["number", "null"]},
        "maximum_contacts": {"type": ["number", "null"]},
        "lists": {"type": ["number", "null"]},
        "users": {"type": ["number", "null"]},
        "campaign_blueprints": {"type": ["number", "null"]},
        "automation_conditions": {"type": ["number", "null"]},
        "use_ab_split": {"type": ["boolean", "null"]},
        "use_automation_conditions": {"type": ["boolean", "null"]},
        "use_automations": {"type": ["boolean", "null"]},
        "use_automation_customwebhooks": {"type": ["boolean", "null"]},
        "use_behavioral_segmentation": {"type": ["boolean", "null"]},
        "use_brand": {"type": ["boolean", "null"]},
        "use_campaign_blueprints": {"type": ["boolean", "null"]},
        "use_contact_export": {"type": ["boolean", "null"]},
        "use_custom_merge_tags": {"type": ["boolean", "null"]},
        "use_email_api": {"type": ["boolean", "null"]},
        "use_html_editor": {"type": ["boolean", "null"]},
        "use_list_redirection": {"type": ["boolean", "null"]},
        "use_smart_email_resource": {"type": ["boolean", "null"]},
        "use_smart_blueprint": {"type": ["boolean", "null"]},
        "use_tags_in_automation": {"type": ["boolean", "null"]},
        "use_tags": {"type": ["boolean", "null"]},
        "insert_reseller_logo": {"type": ["boolean", "null"]}
      }
    },
    "last_activity_on": {"type": ["number", "null"]},
    "created_on": {"type": ["number", "null"]},
    "partner": {"type": ["boolean", "null"]},
    "organization": {"type": ["boolean", "null"]},
    "stripe_customer_id": {"type": ["string", "null"]},
    "overrides": {
      "type": ["object", "null"],
      "properties": {
        "bypass_recaptcha": {"type": ["boolean", "null"]},
        "inject_address": {"type": ["boolean", "null"]},
        "inject_unsubscribe_link": {"type": ["boolean", "null"]}
      }
    },
    "metadata": {"type": ["object", "null"]}
  }
}`

const userSchemaJSON = `{
  "type": "object",
  "required": ["id", "email", "status", "first_name", "last_name", "language", "timezone"],
  "properties": {
    "id": {"type": "string"},
    "email": {"type": "string"},
    "status": {"type": "string"},
    "created_on": {"type": ["number", "null"]},
    "last_activity_on": {"type": ["number", "null"]},
    "expires_on": {"type": ["number", "null"]},
    "first_name": {"type": "string"},
    "last_name": {"type": "string"},
    "title": {"type": ["string", "null"]},
    "language": {"type": "string"},
    "timezone": {"type": "string"},
    "office_phone": {"type": ["string", "null"]},
    "mobile_phone": {"type": ["string", "null"]}
  }
}`

var (
	accountSchema = mustCompile("account.json", accountSchemaJSON)
	userSchema    = mustCompile("user.json", userSchemaJSON)
)

func mustCompile(name, src string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
	if err != nil {
		panic(fmt.Sprintf("identity: parse %s: %v", name, err))
	}
	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft7)
	if err := c.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("identity: add %s: %v", name, err))
	}
	return c.MustCompile(name)
}

// decodeRecord unwraps an optional {"data": {...}} envelope, checks the
// record against schema and decodes it into dst.
func decodeRecord(schema *jsonschema.Schema, body []byte, dst any) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse body: %w", err)
	}

	raw := json.RawMessage(body)
	if obj, ok := inst.(map[string]any); ok {
		if data, ok := obj["data"].(map[string]any); ok {
			inst = data
			var env struct {
				Data json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(body, &env); err != nil {
				return fmt.Errorf("unwrap envelope: %w", err)
			}
			raw = env.Data
		}
	}

	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
