package auth

import "strings"

type StaffPermission string

const (
	PermOrdersRead   StaffPermission = "orders_read"
	PermOrdersCreate StaffPermission = "orders_create"
	PermOrderStatus  StaffPermission = "order_status"
	PermTablesRead   StaffPermission = "tables_read"
	PermTables       StaffPermission = "tables"
	PermReservations StaffPermission = "reservations"
)

var apiPermissionMap = map[string]StaffPermission{
	"GET /api/orders":        PermOrdersRead,
	"POST /api/orders":       PermOrdersCreate,
	"PATCH /api/orders":      PermOrderStatus,
	"/api/tables":            PermTables,
	"GET /api/tables":        PermTablesRead,
	"/api/reservations":      PermReservations,
	"GET /api/reservations":  PermReservations,
	"POST /api/reservations": PermReservations,
}

var rolePermissions = map[StaffRole][]StaffPermission{
	RoleAdmin:   {PermOrdersRead, PermOrdersCreate, PermOrderStatus, PermTablesRead, PermTables, PermReservations},
	RoleWaiter:  {PermOrdersRead, PermOrdersCreate, PermOrderStatus, PermTablesRead, PermTables, PermReservations},
	RoleKitchen: {PermOrdersRead, PermOrderStatus, PermTablesRead},
}

// GetPermissionForAPI returns the permission guarding path, preferring the
// longest matching prefix and, on ties, a method-specific entry.
func GetPermissionForAPI(path string, method string) *StaffPermission {
	method = strings.ToUpper(strings.TrimSpace(method))

	var bestPath string
	var bestPerm *StaffPermission
	var bestMethodSpecific bool

	for key, perm := range apiPermissionMap {
		keyPath := key
		methodSpecific := false
		if strings.Contains(key, " ") {
			parts := strings.SplitN(key, " ", 2)
			keyMethod := strings.ToUpper(strings.TrimSpace(parts[0]))
			keyPath = strings.TrimSpace(parts[1])
			methodSpecific = true
			if method == "" || method != keyMethod {
				continue
			}
		}

		if path != keyPath && !strings.HasPrefix(path, strings.TrimSuffix(keyPath, "/")+"/") {
			continue
		}

		if bestPerm == nil || len(keyPath) > len(bestPath) || (len(keyPath) == len(bestPath) && methodSpecific && !bestMethodSpecific) {
			bestPath = keyPath
			bestMethodSpecific = methodSpecific
			permCopy := perm
			bestPerm = &permCopy
		}
	}

	return bestPerm
}

func RoleHasPermission(role StaffRole, perm StaffPermission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

func PermissionsForRole(role StaffRole) []string {
	perms := rolePermissions[role]
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, string(p))
	}
	return out
}
