/*
Package adminserver serves the operational endpoints of a process that holds a database.

	/live           liveness checks of every registered system.HealthChecker
	/ready          readiness checks, including a ping of the database primary
	/metrics        prometheus exposition of the registered collectors
	/debug/pprof/   runtime profiles
*/
package adminserver
