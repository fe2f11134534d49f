package native

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/i2y/mcphub/internal/adapter/outbound/httpinvoker"
	"github.com/i2y/mcphub/internal/adapter/outbound/sqlitestore"
	"github.com/i2y/mcphub/internal/domain"
	"github.com/i2y/mcphub/internal/usecase"
)

// ServiceNowConfig locates the ServiceNow instance the local ticket tools read from.
type ServiceNowConfig struct {
	// InstanceURL is the REST root, e.g. https://dev1234.service-now.com/api.
	InstanceURL string
	Username    string
	Password    string
}

type incidentList struct {
	Result []incident `json:"result"`
}

type incident struct {
	SysID            string          `json:"sys_id"`
	Number           string          `json:"number"`
	ShortDescription string          `json:"short_description"`
	Priority         string          `json:"priority"`
	State            string          `json:"state"`
	AssignmentGroup  json.RawMessage `json:"assignment_group"`
	OpenedAt         string          `json:"opened_at"`
}

// displayValue reads a field that is either a plain string or a reference object.
func displayValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var ref struct {
		DisplayValue string `json:"display_value"`
	}
	if err := json.Unmarshal(raw, &ref); err == nil {
		return ref.DisplayValue
	}
	return ""
}

type ticketTools struct {
	invoker *httpinvoker.Invoker
	cfg     ServiceNowConfig
	logger  *slog.Logger
}

// TicketTools returns the local ticket tools: fetch_all_tickets pulls every incident
// from the instance into the database, list_stored_tickets reads them back.
func TicketTools(invoker *httpinvoker.Invoker, cfg ServiceNowConfig, logger *slog.Logger) []Tool {
	t := &ticketTools{invoker: invoker, cfg: cfg, logger: logger.With("component", "ticket_tools")}
	return []Tool{
		{
			Name:        "fetch_all_tickets",
			Description: "Fetch all incidents from ServiceNow and store them in the local database.",
			Group:       usecase.NativeGroupLocal,
			Signature:   &domain.Signature{Params: []domain.Param{{Name: "db"}}},
			Func:        t.fetchAll,
		},
		{
			Name:        "list_stored_tickets",
			Description: "List the tickets stored in the local database, optionally filtered by priority.",
			Group:       usecase.NativeGroupLocal,
			Signature: &domain.Signature{Params: []domain.Param{
				{Name: "db"},
				{Name: "priority", Description: "Only tickets with this priority, e.g. '1 - Critical'.", HasDefault: true, Default: ""},
			}},
			Func: t.listStored,
		},
	}
}

func (t *ticketTools) fetchAll(ctx context.Context, in Input) (interface{}, error) {
	if in.DB == nil {
		return nil, errors.New("fetch_all_tickets needs a database handle")
	}
	if t.cfg.InstanceURL == "" {
		return nil, fmt.Errorf("ServiceNow instance URL is not configured: %w", usecase.ErrAPINotConfigured)
	}
	if t.cfg.Username == "" || t.cfg.Password == "" {
		return nil, fmt.Errorf("ServiceNow credentials are not configured: %w", usecase.ErrMissingCredentials)
	}

	var list incidentList
	err := t.invoker.DoInto(ctx, httpinvoker.Request{
		Method:  http.MethodGet,
		BaseURL: t.cfg.InstanceURL,
		Path:    "/now/table/incident",
		Args:    map[string]interface{}{"sysparm_display_value": "true"},
		ArgsIn:  httpinvoker.ArgsInQuery,
		Auth:    httpinvoker.BasicAuth(t.cfg.Username, t.cfg.Password),
	}, &list)
	if err != nil {
		return nil, fmt.Errorf("error communicating with ServiceNow: %w", err)
	}

	now := time.Now().UTC()
	tickets := make([]sqlitestore.Ticket, 0, len(list.Result))
	for _, inc := range list.Result {
		tickets = append(tickets, sqlitestore.Ticket{
			SysID:            inc.SysID,
			Number:           inc.Number,
			ShortDescription: inc.ShortDescription,
			Priority:         inc.Priority,
			State:            inc.State,
			AssignmentGroup:  displayValue(inc.AssignmentGroup),
			OpenedAt:         inc.OpenedAt,
			FetchedAt:        now,
		})
	}

	tx, err := in.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	stored, err := sqlitestore.UpsertTickets(ctx, tx, tickets)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing tickets: %w", err)
	}

	t.logger.Info("Stored ServiceNow tickets", slog.Int("received", len(list.Result)), slog.Int("stored", stored))
	return map[string]interface{}{
		"message": "Tickets fetched and stored successfully.",
		"count":   stored,
	}, nil
}

func (t *ticketTools) listStored(ctx context.Context, in Input) (interface{}, error) {
	if in.DB == nil {
		return nil, errors.New("list_stored_tickets needs a database handle")
	}
	return sqlitestore.ListTickets(ctx, in.DB, StringArg(in.Args, "priority"))
}
