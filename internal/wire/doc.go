// Package wire defines the two datagram messages exchanged between the
// agent and the bridge and their binary encoding.
//
//   - [Action]: agent -> bridge, motor commands or an episode directive
//   - [State]: bridge -> agent, the aggregated sensor snapshot of one tick
//
// Both messages use the protobuf wire format so agents can decode them with
// any protobuf runtime:
//
//	message Action {
//	  repeated double motor = 1;
//	  Control world_control = 2;   // STEP = 0, RESET = 1
//	}
//
//	message State {
//	  double sim_time = 1;
//	  repeated double imu_angular_velocity_rpy = 2;
//	  repeated double imu_orientation_quat = 3;
//	  repeated double imu_linear_acceleration_xyz = 4;
//	  repeated double esc_motor_angular_velocity = 5;
//	  repeated double esc_temperature = 6;
//	  repeated double esc_current = 7;
//	  repeated double esc_voltage = 8;
//	  StatusCode status_code = 9;  // OK = 0, SENSOR_TIMEOUT = 1, FLUSH_INCOMPLETE = 2
//	}
//
// Every encoded message must fit in [MaxDatagramSize] bytes.
package wire
