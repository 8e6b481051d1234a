package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create automation_rules table
			CREATE TABLE automation_rules (
				id VARCHAR(64) PRIMARY KEY,
				workspace_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				entity_type VARCHAR(32) NOT NULL CHECK (entity_type IN ('transaction', 'account', 'payee', 'category', 'schedule', 'budget')),
				event VARCHAR(255) NOT NULL,
				debounce_ms INTEGER NOT NULL DEFAULT 0,
				conditions JSONB NOT NULL,
				actions JSONB NOT NULL,
				priority INTEGER NOT NULL DEFAULT 0,
				is_enabled BOOLEAN NOT NULL DEFAULT true,
				stop_on_match BOOLEAN NOT NULL DEFAULT true,
				run_once BOOLEAN NOT NULL DEFAULT false,
				trigger_count INTEGER NOT NULL DEFAULT 0,
				last_triggered_at TIMESTAMP WITH TIME ZONE,
				flow_state JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_automation_rules_workspace ON automation_rules(workspace_id);
			CREATE INDEX idx_automation_rules_trigger ON automation_rules(workspace_id, entity_type, event) WHERE is_enabled;
		`,
		2: `
			-- Create automation_rule_logs table
			CREATE TABLE automation_rule_logs (
				id VARCHAR(64) PRIMARY KEY,
				workspace_id VARCHAR(255) NOT NULL,
				rule_id VARCHAR(64) NOT NULL REFERENCES automation_rules(id) ON DELETE CASCADE,
				trigger_event VARCHAR(255) NOT NULL,
				entity_type VARCHAR(32) NOT NULL,
				entity_id VARCHAR(255),
				status VARCHAR(16) NOT NULL CHECK (status IN ('success', 'failed', 'skipped')),
				conditions_matched BOOLEAN NOT NULL DEFAULT false,
				actions_executed JSONB,
				error_message TEXT,
				execution_time_ms BIGINT NOT NULL DEFAULT 0,
				entity_snapshot JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_automation_rule_logs_rule ON automation_rule_logs(workspace_id, rule_id, created_at DESC);
			CREATE INDEX idx_automation_rule_logs_recent ON automation_rule_logs(workspace_id, created_at DESC);
		`,
	}
}
