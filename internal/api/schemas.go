package api

const postEntrySchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["date", "lines"],
  "properties": {
    "date": {"type": "string", "minLength": 1},
    "description": {"type": "string", "maxLength": 500},
    "status": {"type": "string", "enum": ["DRAFT", "POSTED"]},
    "lines": {
      "type": "array",
      "minItems": 2,
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["account_id"],
        "properties": {
          "account_id": {"type": "string", "minLength": 1},
          "debit": {"type": ["string", "number"]},
          "credit": {"type": ["string", "number"]},
          "description": {"type": "string", "maxLength": 500}
        }
      }
    }
  }
}`

const createAccountSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["name", "type"],
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": 255},
    "type": {"type": "string", "enum": ["asset", "liability", "equity", "revenue", "expense"]},
    "parent_account_id": {"type": "string"}
  }
}`

const saveDocumentSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["counterparty", "date", "lines"],
  "properties": {
    "counterparty": {"type": "string", "minLength": 1, "maxLength": 255},
    "number": {"type": "string", "maxLength": 50},
    "date": {"type": "string", "minLength": 1},
    "due_date": {"type": "string"},
    "notes": {"type": "string", "maxLength": 2000},
    "lines": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["account_id", "quantity", "unit_price"],
        "properties": {
          "account_id": {"type": "string", "minLength": 1},
          "description": {"type": "string", "maxLength": 500},
          "quantity": {"type": ["string", "number"]},
          "unit_price": {"type": ["string", "number"]}
        }
      }
    }
  }
}`

const recordPaymentSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["amount"],
  "properties": {
    "amount": {"type": "string", "minLength": 1},
    "date": {"type": "string"},
    "account_id": {"type": "string"}
  }
}`

const matchSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["journal_entry_id"],
  "properties": {
    "journal_entry_id": {"type": "string", "minLength": 1}
  }
}`

const createAndMatchSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["contra_account_id"],
  "properties": {
    "contra_account_id": {"type": "string", "minLength": 1},
    "description": {"type": "string", "maxLength": 500}
  }
}`
