// Package staticsvc declares the fixed tool tables of the sibling microservices.
package staticsvc

import (
	"github.com/i2y/mcphub/internal/adapter/outbound/httpinvoker"
	"github.com/i2y/mcphub/internal/domain"
)

// Backend names, joined to base URLs by the invoker.
const (
	BackendServiceNow = "servicenow"
	BackendGLPI       = "glpi"
)

// Entry maps one tool name to a microservice endpoint.
type Entry struct {
	Name        string
	Endpoint    string
	Description string
	// Model is the typed argument model, nil when the tool takes no arguments.
	Model *domain.JSONSchemaProps
}

// Table is the tool table of one backend. It implements usecase.StaticToolSource.
type Table struct {
	Backend      string
	Module       string
	OutputSchema domain.JSONSchemaProps
	Entries      []Entry
}

// Descriptors returns the table's tools in declaration order.
func (t Table) Descriptors() []domain.ToolDescriptor {
	tools := make([]domain.ToolDescriptor, 0, len(t.Entries))
	for _, e := range t.Entries {
		input := domain.ObjectSchema()
		if e.Model != nil {
			input = *e.Model
		}
		output := t.OutputSchema
		tools = append(tools, domain.ToolDescriptor{
			Name:         e.Name,
			Title:        domain.TitleFromName(e.Name),
			Description:  e.Description,
			InputSchema:  input,
			OutputSchema: &output,
			Annotations:  map[string]string{domain.AnnotationModule: t.Module},
			Route: domain.StaticRoute{
				Backend:  t.Backend,
				Endpoint: e.Endpoint,
				Method:   httpinvoker.StaticMethod(e.Endpoint, e.Name),
			},
			TypedArguments: e.Model != nil,
		})
	}
	return tools
}

func stringField(title, description string) domain.JSONSchemaProps {
	return domain.JSONSchemaProps{Type: "string", Title: title, Description: description}
}

// ServiceNow is the ticketing backend table.
func ServiceNow() Table {
	return Table{
		Backend: BackendServiceNow,
		Module:  "servicenow_tools",
		OutputSchema: domain.JSONSchemaProps{
			Type:       "object",
			Properties: map[string]domain.JSONSchemaProps{"message": {Type: "string"}},
		},
		Entries: []Entry{
			{
				Name:        "get_report_open_by_priority",
				Endpoint:    "/servicenow/reports/open_by_priority",
				Description: "Get a report of open tickets by priority in ServiceNow.",
				Model: &domain.JSONSchemaProps{
					Type:  "object",
					Title: "GetReportOpenByPriorityArgs",
					Properties: map[string]domain.JSONSchemaProps{
						"priority": stringField("Priority", "Ticket priority, e.g. '1 - Critical'."),
					},
					Required: []string{"priority"},
				},
			},
			{
				Name:        "get_report_by_assignment_group",
				Endpoint:    "/servicenow/reports/by_assignment_group",
				Description: "Get a report of tickets by assignment group in ServiceNow.",
				Model: &domain.JSONSchemaProps{
					Type:  "object",
					Title: "GetReportByAssignmentGroupArgs",
					Properties: map[string]domain.JSONSchemaProps{
						"group": stringField("Group", "Name of the assignment group."),
					},
					Required: []string{"group"},
				},
			},
			{
				Name:        "get_report_recently_resolved",
				Endpoint:    "/servicenow/reports/recently_resolved",
				Description: "Get a report of recently resolved tickets in ServiceNow.",
			},
			{
				Name:        "create_new_ticket",
				Endpoint:    "/servicenow/tickets/create",
				Description: "Create a new ticket in ServiceNow.",
				Model: &domain.JSONSchemaProps{
					Type:  "object",
					Title: "CreateNewTicketServiceNowArgs",
					Properties: map[string]domain.JSONSchemaProps{
						"short_description": stringField("Short Description", "One line summary of the issue."),
						"assignment_group":  stringField("Assignment Group", "Group the ticket is assigned to."),
						"priority":          stringField("Priority", "Ticket priority, e.g. '3 - Moderate'."),
					},
					Required: []string{"short_description"},
				},
			},
			{
				Name:        "fetch_all_servicenow_tickets",
				Endpoint:    "/servicenow/tickets/fetch_all_servicenow_tickets",
				Description: "Fetch all tickets from ServiceNow.",
			},
		},
	}
}

// GLPI is the asset inventory backend table.
func GLPI() Table {
	return Table{
		Backend:      BackendGLPI,
		Module:       "glpi_tools",
		OutputSchema: domain.ObjectSchema(),
		Entries: []Entry{
			{Name: "get_glpi_laptop_count", Endpoint: "/glpi/laptop_count", Description: "Get the count of laptops in GLPI."},
			{Name: "get_glpi_pc_count", Endpoint: "/glpi/pc_count", Description: "Get the count of PCs in GLPI."},
			{Name: "get_glpi_monitor_count", Endpoint: "/glpi/monitor_count", Description: "Get the count of monitors in GLPI."},
			{Name: "get_glpi_os_distribution", Endpoint: "/glpi/os_distribution", Description: "Get the OS distribution of assets in GLPI."},
			{
				Name:        "get_glpi_full_asset_dump",
				Endpoint:    "/glpi/full_asset_dump",
				Description: "Get a full asset dump from GLPI.",
				Model: &domain.JSONSchemaProps{
					Type:  "object",
					Title: "GetGlpiFullAssetDumpArgs",
					Properties: map[string]domain.JSONSchemaProps{
						"itemtype": stringField("Itemtype", "GLPI item type to dump, e.g. 'Computer' or 'Monitor'."),
					},
					Required: []string{"itemtype"},
				},
			},
			{Name: "fetch_all_glpi_inventory", Endpoint: "/glpi/inventory", Description: "Fetch all inventory from GLPI."},
		},
	}
}
