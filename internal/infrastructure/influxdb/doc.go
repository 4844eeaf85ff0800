// Package influxdb records station presence history in InfluxDB.
//
// Every connect and disconnect seen by the notifier becomes a
// station_presence point tagged with the station ID (and the disconnect
// reason), so uptime per station can be charted without polling.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteStationPresence(12, true, "", 0, time.Now())
//
// Writes are batched per influxdb.batch_size and influxdb.flush_interval.
// Write errors are delivered asynchronously through SetOnError.
package influxdb
