// Package api is the producer HTTP API of stomata.
//
// It provisions stations and lets a station (or anything holding its token)
// change the station's state and configuration. Every change is stored and
// then queued on the notifier, which pushes it to the station if it is
// connected.
//
//	POST /api/v1/stations                    {"id","name"} -> 201 {"token"}
//	GET  /api/v1/stations/{id}               -> {"id","name"}
//	PUT  /api/v1/stations/{id}               {"name"}
//	GET  /api/v1/stations/{id}/state         -> {"state"}
//	PUT  /api/v1/stations/{id}/state         {"state"}
//	GET  /api/v1/stations/{id}/config        -> {"conf"}
//	PUT  /api/v1/stations/{id}/config        {"conf"}
//	GET  /api/v1/stations/{id}/presence      -> {"connected"}
//	GET  /api/v1/health
//	GET  /metrics
//
// Routes under /stations/{id} require HTTP Basic auth with the station ID
// as user name and the provisioning token as password.
package api
