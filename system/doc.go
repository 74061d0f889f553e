/*
Package system manages the startup, running, metrics and shutdown of a program that holds a
database connection.

Loaders register what they own: cleanups (closing the client), health checks (pinging the
server) and metric producers (connection pool gauges). The program then either runs until it
is told to terminate, or just calls Cleanup when its work is done.
*/
package system
