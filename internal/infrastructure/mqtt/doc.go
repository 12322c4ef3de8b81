// Package mqtt provides the MQTT connection Billy uses to talk to the
// outside world.
//
// Billy publishes on the broker:
//   - billy/state: "playing_song" or "idle" (retained)
//   - billy/motor/{head,mouth,tail}: JSON movement commands for the motor
//     controller, and billy/motor/stop to return every motor to rest
//   - billy/system/status: online/offline status (retained, also the LWT)
//   - billy/session/finished: JSON report of each finished song
//
// and subscribes to billy/command/+ for remote play and stop requests.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishState(mqtt.Topics{}.State(), mqtt.StateIdle)
package mqtt
