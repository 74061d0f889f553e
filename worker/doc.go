/*
Package worker runs a loop with observability, backing off when the work function reports it
found nothing to do.

The system package uses it to publish pool gauges on a fixed interval.
*/
package worker
