/*
Package mongodriver implements driver.Driver on top of the official MongoDB Go driver.

It owns the translation from loosely typed option mappings to driver options, client side id
generation, and reporting for the connection pool (gauges, a prometheus collector and a
health check).
*/
package mongodriver
