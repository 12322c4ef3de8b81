// Package influxdb writes playback telemetry to InfluxDB v2 with the
// official influxdb-client-go library.
//
// Every finished session becomes one billy_session point tagged with the
// device, song and outcome. State changes (playing_song / idle) are kept
// as billy_state points so dashboards can chart when the fish sang.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Device.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Client implements playback.Reporter. Writes are batched and
// non-blocking; register SetOnError to log failures.
package influxdb
