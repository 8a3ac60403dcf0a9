// Package pgq holds the fixed SQL strings pgqd issues against the pgq
// extension. These are a stable contract surface: callers never build
// these statements dynamically, only their parameters.
package pgq

// Discovery and version probing.
const (
	DiscoverDatabases = `select datname from pg_database where not datistemplate and datallowconn`
	ProbeNamespace    = `select 1 from pg_catalog.pg_namespace where nspname='pgq'`
	ProbeVersion      = `select pgq.version()`
)

// Ticker.
const Tick = `select pgq.ticker()`

// Retry.
const RetryEvents = `select * from pgq.maint_retry_events()`

// Maintenance: new operations-based path.
const (
	ProbeMaintOperations = `select 1 from pg_proc p, pg_namespace n where p.pronamespace=n.oid and p.proname='maint_operations' and n.nspname='pgq'`
	LoadMaintOperations  = `select func_name, func_arg from pgq.maint_operations()`
)

// Maintenance: legacy rotate/vacuum path.
const (
	LoadQueueList  = `select queue_name from pgq.get_queue_info()`
	RotateStep1    = `select pgq.maint_rotate_tables_step1($1)`
	RotateStep2    = `select pgq.maint_rotate_tables_step2()`
	LoadVacuumList = `select * from pgq.maint_tables_to_vacuum()`
)

// MinMajorVersion is the lowest first-character digit of pgq.version()
// that this daemon will drive; anything lower is treated as absent.
const MinMajorVersion = '3'
