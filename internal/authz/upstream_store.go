package authz

import (
	"context"
	"fmt"
	"strings"

	"parish-portal/internal/platform"
)

// Table names on the upstream platform. The platform itself is the system of
// record for which portal applications exist and who may use them.
const (
	applicationsTable = "Portal_Applications"
	permissionsTable  = "Portal_Application_Permissions"
)

// UpstreamStore reads application and permission rows through the record
// gateway.
type UpstreamStore struct {
	client *platform.Client
}

func NewUpstreamStore(client *platform.Client) *UpstreamStore {
	return &UpstreamStore{client: client}
}

func (s *UpstreamStore) Application(ctx context.Context, key string) (*Application, error) {
	rows, err := s.client.Read(ctx, applicationsTable, platform.Query{
		Select: []string{"Application_Key", "Route_Path", "Requires_Auth", "Is_Active"},
		Filter: fmt.Sprintf("Application_Key = '%s'", escape(key)),
		Top:    1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	app := applicationFromRow(rows[0])
	return &app, nil
}

func (s *UpstreamStore) Applications(ctx context.Context) ([]Application, error) {
	rows, err := s.client.Read(ctx, applicationsTable, platform.Query{
		Select:  []string{"Application_Key", "Route_Path", "Requires_Auth", "Is_Active"},
		OrderBy: "Application_Key",
	})
	if err != nil {
		return nil, err
	}
	apps := make([]Application, 0, len(rows))
	for _, row := range rows {
		apps = append(apps, applicationFromRow(row))
	}
	return apps, nil
}

func (s *UpstreamStore) Permissions(ctx context.Context, appKey string) ([]Permission, error) {
	rows, err := s.client.Read(ctx, permissionsTable, platform.Query{
		Select: []string{"Application_Key", "Role_Name", "Email_Address", "Can_View", "Can_Edit", "Can_Delete"},
		Filter: fmt.Sprintf("Application_Key = '%s'", escape(appKey)),
	})
	if err != nil {
		return nil, err
	}
	perms := make([]Permission, 0, len(rows))
	for _, row := range rows {
		perms = append(perms, Permission{
			AppKey:    asString(row["Application_Key"]),
			Role:      asString(row["Role_Name"]),
			Email:     asString(row["Email_Address"]),
			CanView:   asBool(row["Can_View"]),
			CanEdit:   asBool(row["Can_Edit"]),
			CanDelete: asBool(row["Can_Delete"]),
		})
	}
	return perms, nil
}

func applicationFromRow(row platform.Record) Application {
	return Application{
		Key:          asString(row["Application_Key"]),
		Path:         asString(row["Route_Path"]),
		RequiresAuth: asBool(row["Requires_Auth"]),
		Active:       asBool(row["Is_Active"]),
	}
}

// escape doubles single quotes for the upstream's predicate dialect.
func escape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asBool tolerates the shapes the upstream uses for bit columns: real JSON
// booleans and 0/1 numbers.
func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0
	case int:
		return b != 0
	default:
		return false
	}
}
