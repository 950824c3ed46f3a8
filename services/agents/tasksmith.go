package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/clinisight/agent-orchestrator/models"
	"github.com/clinisight/agent-orchestrator/services"
	"github.com/clinisight/agent-orchestrator/services/pii"
	"github.com/clinisight/agent-orchestrator/tracker"
	"go.uber.org/zap"
)

const TaskSmithName = "TaskSmith"

// Subtask is one generated work item from an epic decomposition.
type Subtask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// IssueCreator is the optional downstream tracker surface. A nil creator
// means tracker writes are disabled; decomposition results are persisted
// either way.
type IssueCreator interface {
	CreateIssue(ctx context.Context, issue *tracker.Issue) (*tracker.CreatedIssue, error)
}

// TaskSmith decomposes newly created epics into actionable subtasks. The
// decomposition is idempotent per epic key: re-delivery of the same epic
// returns the cached result instead of generating again.
type TaskSmith struct {
	store  StateStore
	issues IssueCreator
	logger *zap.Logger
}

// NewTaskSmith creates the epic decomposition agent. issues may be nil.
func NewTaskSmith(store StateStore, issues IssueCreator, logger *zap.Logger) *TaskSmith {
	return &TaskSmith{
		store:  store,
		issues: issues,
		logger: logger,
	}
}

func (t *TaskSmith) Name() string {
	return TaskSmithName
}

// Invoke handles an epic-created event. Missing epic details and sensitive
// content in the payload are rejections, not errors: the event was understood
// and deliberately refused. Storage and audit breakage are hard failures.
func (t *TaskSmith) Invoke(ctx context.Context, tenantID string, event *models.CanonicalEvent) Result {
	epicKey, epicSummary := extractEpicFields(event)
	if epicKey == "" {
		return SoftFailure(TaskSmithName, "missing epicKey")
	}

	log := t.logger.With(
		zap.String("tenant_id", tenantID),
		zap.String("epic_key", epicKey))
	log.Info("tasksmith invoked", zap.String("epic_summary", pii.Mask(epicSummary)))

	// Re-delivered epics return the cached decomposition.
	prior, err := t.store.Get(ctx, tenantID, TaskSmithName, "", "epic idempotency check")
	if err != nil && !services.IsNotFoundError(err) {
		return HardFailure(TaskSmithName, err)
	}
	if prior != nil {
		payload, payloadErr := prior.Payload()
		if payloadErr == nil && payload["epicKey"] == epicKey {
			log.Info("epic already processed, returning cached result")
			return Success(TaskSmithName, map[string]any{
				"agent":           TaskSmithName,
				"status":          "success",
				"epicKey":         epicKey,
				"subtasksCreated": payload["subtasksCreated"],
				"subtasks":        payload["subtasks"],
				"cached":          true,
			})
		}
	}

	subtasks := decomposeEpic(epicSummary)
	log.Info("subtasks generated", zap.Int("count", len(subtasks)))

	// Refuse to persist sensitive content. The epic summary travels into the
	// stored payload, so it is scanned before the write, not after.
	if scan := pii.Scan(epicSummary); len(scan.Findings) > 0 {
		log.Warn("epic summary contains sensitive content, refusing to persist",
			zap.Int("findings", len(scan.Findings)))
		return SoftFailure(TaskSmithName, "epic summary contains sensitive content")
	}

	stateData := map[string]any{
		"epicKey":         epicKey,
		"epicSummary":     epicSummary,
		"subtasksCreated": len(subtasks),
		"subtasks":        subtasks,
	}
	if warnings := pii.FieldWarnings(event.Data); len(warnings) > 0 {
		log.Warn("event payload carries sensitive fields, refusing to persist",
			zap.Strings("fields", warnings))
		return SoftFailure(TaskSmithName, "event payload contains sensitive fields")
	}

	created := t.createTrackerIssues(ctx, epicKey, subtasks, log)

	if _, err := t.store.Put(ctx, tenantID, TaskSmithName, stateData, "", "epic decomposition"); err != nil {
		return HardFailure(TaskSmithName, err)
	}

	body := map[string]any{
		"agent":           TaskSmithName,
		"status":          "success",
		"epicKey":         epicKey,
		"subtasksCreated": len(subtasks),
		"subtasks":        subtasks,
	}
	if created > 0 {
		body["trackerIssuesCreated"] = created
	}
	return Success(TaskSmithName, body)
}

// createTrackerIssues pushes subtasks to the downstream tracker when one is
// configured. Tracker outages never fail the decomposition; the persisted
// state is the source of truth and issues can be re-created from it.
func (t *TaskSmith) createTrackerIssues(ctx context.Context, epicKey string, subtasks []Subtask, log *zap.Logger) int {
	if t.issues == nil {
		return 0
	}

	projectKey := epicKey
	if idx := strings.Index(epicKey, "-"); idx > 0 {
		projectKey = epicKey[:idx]
	}

	created := 0
	for _, st := range subtasks {
		_, err := t.issues.CreateIssue(ctx, &tracker.Issue{
			ProjectKey:  projectKey,
			Summary:     st.Title,
			Description: st.Description,
			IssueType:   "Task",
			ParentKey:   epicKey,
			Labels:      []string{"tasksmith"},
		})
		if err != nil {
			log.Warn("tracker issue creation failed", zap.String("title", st.Title), zap.Error(err))
			continue
		}
		created++
	}
	return created
}

func extractEpicFields(event *models.CanonicalEvent) (epicKey, epicSummary string) {
	epicKey = event.DataString("epicKey")
	epicSummary = event.DataString("epicSummary")

	// Webhook payloads nest the epic under issue.key / issue.fields.summary.
	if issue, ok := event.Data["issue"].(map[string]any); ok {
		if epicKey == "" {
			if key, ok := issue["key"].(string); ok {
				epicKey = key
			}
		}
		if epicSummary == "" {
			if fields, ok := issue["fields"].(map[string]any); ok {
				if summary, ok := fields["summary"].(string); ok {
					epicSummary = summary
				}
			}
		}
	}
	return epicKey, epicSummary
}

// decomposeEpic maps an epic summary to a subtask template by keyword. The
// rules are deliberately static; swapping in a model-backed decomposition
// means replacing only this function.
func decomposeEpic(epicSummary string) []Subtask {
	summary := strings.ToLower(epicSummary)

	switch {
	case strings.Contains(summary, "portal"):
		return []Subtask{
			{
				Title:       "Design user authentication and authorization system",
				Description: "Implement secure login with multi-factor authentication for patient access. Include password reset flow and session management.",
			},
			{
				Title:       "Build patient dashboard UI",
				Description: "Create responsive dashboard showing appointments, test results, and messages. Must be mobile-friendly and WCAG 2.1 compliant.",
			},
			{
				Title:       "Integrate with Electronic Health Record (EHR) system",
				Description: "Establish secure API connection to retrieve patient data. Implement proper error handling and data validation.",
			},
			{
				Title:       "Implement secure messaging between patients and providers",
				Description: "Build HIPAA-compliant messaging with end-to-end encryption. Include read receipts and attachment support.",
			},
			{
				Title:       "Add appointment scheduling functionality",
				Description: "Allow patients to view provider availability and book appointments. Include calendar integration and reminder notifications.",
			},
		}
	case strings.Contains(summary, "compliance"), strings.Contains(summary, "hipaa"):
		return []Subtask{
			{
				Title:       "Conduct HIPAA compliance audit",
				Description: "Review current systems and processes against HIPAA requirements. Document gaps and create remediation plan.",
			},
			{
				Title:       "Implement access controls and audit logging",
				Description: "Ensure all PHI access is logged and monitored. Set up role-based access control (RBAC) and regular access reviews.",
			},
			{
				Title:       "Update privacy policies and consent forms",
				Description: "Revise patient-facing documentation to comply with current regulations. Get legal review and approval.",
			},
			{
				Title:       "Conduct staff training on HIPAA requirements",
				Description: "Educate team on privacy and security best practices. Include annual refresher training and testing.",
			},
		}
	case strings.Contains(summary, "integrat"):
		return []Subtask{
			{
				Title:       "Document API requirements and specifications",
				Description: "Define data formats, authentication methods, and endpoints. Create API documentation and test cases.",
			},
			{
				Title:       "Develop integration middleware layer",
				Description: "Build service layer to connect systems. Implement retry logic, error handling, and logging.",
			},
			{
				Title:       "Implement data transformation and validation",
				Description: "Ensure data quality and consistency between systems. Create mapping rules and validation logic.",
			},
			{
				Title:       "Test integration end-to-end",
				Description: "Verify data flows correctly in all scenarios. Include edge cases and error conditions.",
			},
			{
				Title:       "Deploy to production and monitor",
				Description: "Roll out integration with monitoring and alerting. Create runbook for common issues.",
			},
		}
	default:
		return []Subtask{
			{
				Title:       fmt.Sprintf("Research and design solution for: %s", epicSummary),
				Description: "Investigate requirements, review existing solutions, and create technical design document.",
			},
			{
				Title:       fmt.Sprintf("Implement core functionality for: %s", epicSummary),
				Description: "Build the main features according to technical design. Include unit tests.",
			},
			{
				Title:       fmt.Sprintf("Test and validate: %s", epicSummary),
				Description: "Create comprehensive test suite and ensure quality standards are met.",
			},
			{
				Title:       fmt.Sprintf("Deploy and document: %s", epicSummary),
				Description: "Release to production and create user documentation. Set up monitoring.",
			},
		}
	}
}
