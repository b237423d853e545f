package bot

import "context"

type handlerFunc func(ctx context.Context, r *request) error

// command describes a route and the gates in front of it.
type command struct {
	run handlerFunc
	// gated commands are blocked for non-admins during maintenance.
	gated bool
	// admin commands are refused for non-admins, silently unless denial
	// is set.
	admin  bool
	denial string
}

// bareCommands may be typed without a leading slash.
var bareCommands = map[string]struct{}{
	"get":      {},
	"isbanned": {},
	"region":   {},
	"search":   {},
}

func (d *Dispatcher) routes() map[string]command {
	m := map[string]command{
		// user
		"start":  {run: d.handleHelp},
		"help":   {run: d.handleHelp},
		"remain": {run: d.handleRemain},
		"id":     {run: d.handleID},
		"info":   {run: d.handleInfo},

		"like":  {run: d.handleLike, gated: true},
		"spam":  {run: d.handleSpam, gated: true},
		"visit": {run: d.handleVisit, gated: true},

		"get":      {run: d.handleGet, gated: true},
		"isbanned": {run: d.handleIsBanned, gated: true},
		"region":   {run: d.handleRegion, gated: true},
		"search":   {run: d.handleSearch, gated: true},

		// admin
		"addgroup":      {run: d.handleAddGroup, admin: true},
		"removegroup":   {run: d.handleRemoveGroup, admin: true},
		"listgroups":    {run: d.handleListGroups, admin: true},
		"stats":         {run: d.handleStats, admin: true},
		"resetcooldown": {run: d.handleResetCooldown, admin: true},
		"reset":         {run: d.handleReset, admin: true},
		"maintenance":   {run: d.handleMaintenance, admin: true, denial: maintenanceDenied},
		"setfooter":     {run: d.handleSetFooter, admin: true, denial: adminOnlyDenied},
	}
	if d.opts.Backups != nil {
		m["backup"] = command{run: d.handleBackup, admin: true}
	}
	return m
}
