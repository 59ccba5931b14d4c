package db

// Schema is the DDL for the mailscheduler database.
const Schema = `
CREATE TABLE IF NOT EXISTS contacts (
    id          TEXT PRIMARY KEY,
    sheet_title TEXT NOT NULL,
    row_number  INTEGER NOT NULL,
    name        TEXT NOT NULL,
    website     TEXT,
    phone       TEXT,
    created_at  TEXT NOT NULL,
    updated_at  TEXT,
    UNIQUE(sheet_title, row_number)
);

CREATE TABLE IF NOT EXISTS recipients (
    id                  TEXT PRIMARY KEY,
    contact_id          TEXT NOT NULL,
    email_address       TEXT NOT NULL,
    salutation          TEXT,
    plan_id             TEXT,
    has_replied         INTEGER NOT NULL DEFAULT 0,
    thread_id           TEXT,
    initial_contact_at  TEXT,
    created_at          TEXT NOT NULL,
    updated_at          TEXT,
    UNIQUE(contact_id, email_address),
    FOREIGN KEY (contact_id) REFERENCES contacts(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS emails (
    id                TEXT PRIMARY KEY,
    recipient_id      TEXT NOT NULL,
    from_addr         TEXT NOT NULL,
    to_addr           TEXT NOT NULL,
    subject           TEXT NOT NULL,
    body              TEXT,
    type              TEXT NOT NULL,
    status            TEXT NOT NULL DEFAULT 'PENDING',
    followup_number   INTEGER NOT NULL DEFAULT 0,
    thread_id         TEXT,
    initial_email_id  TEXT,
    scheduled_at      TEXT NOT NULL,
    sent_at           TEXT,
    created_at        TEXT NOT NULL,
    FOREIGN KEY (recipient_id) REFERENCES recipients(id) ON DELETE CASCADE,
    FOREIGN KEY (initial_email_id) REFERENCES emails(id)
);

CREATE TABLE IF NOT EXISTS templates (
    id          TEXT PRIMARY KEY,
    subject     TEXT NOT NULL,
    body        TEXT,
    type        TEXT NOT NULL,
    draft_id    TEXT,
    created_at  TEXT NOT NULL,
    updated_at  TEXT
);

CREATE TABLE IF NOT EXISTS followup_plans (
    id                   TEXT PRIMARY KEY,
    name                 TEXT NOT NULL UNIQUE,
    initial_template_id  TEXT,
    created_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS followup_steps (
    id           TEXT PRIMARY KEY,
    plan_id      TEXT NOT NULL,
    step_number  INTEGER NOT NULL,
    wait_days    INTEGER NOT NULL,
    template_id  TEXT NOT NULL,
    UNIQUE(plan_id, step_number),
    FOREIGN KEY (plan_id) REFERENCES followup_plans(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS settings (
    key    TEXT PRIMARY KEY,
    value  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contacts_sheet ON contacts(sheet_title, row_number);
CREATE INDEX IF NOT EXISTS idx_recipients_contact ON recipients(contact_id);
CREATE INDEX IF NOT EXISTS idx_emails_recipient ON emails(recipient_id);
CREATE INDEX IF NOT EXISTS idx_emails_status ON emails(status);
CREATE INDEX IF NOT EXISTS idx_emails_scheduled ON emails(status, scheduled_at);
CREATE INDEX IF NOT EXISTS idx_templates_draft ON templates(draft_id);
CREATE INDEX IF NOT EXISTS idx_steps_plan ON followup_steps(plan_id, step_number);
`
