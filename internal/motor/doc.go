// Package motor implements movement.Actuator.
//
// MQTTActuator publishes JSON commands for the motor controller firmware:
//
//	billy/motor/head   {"position":0.3,"duration_ms":250,"at_ms":1500}
//	billy/motor/stop   {"motors":["head","mouth","tail"]}
//
// LogActuator only logs, for hosts without a motor controller.
package motor
