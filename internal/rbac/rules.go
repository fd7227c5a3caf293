package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"assessment:view",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
		"attempt:report-violation",
	},
	"teacher": {
		"assessment:create",
		"assessment:view",
		"assessment:view-answers",
		"attempt:view-all",
		"attempt:grade",
	},
	"proctor": {
		"attempt:view-all",
		"attempt:report-violation",
	},
	"admin": {
		"*", // everything
	},
}
