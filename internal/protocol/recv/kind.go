package recv

import "fmt"

// Kind is the host-originated message type read from an inbound header.
type Kind uint32

const (
	KindNull Kind = iota
	KindException
	KindOpen
	KindQuit
	KindEvent
	KindEventObjectAddRemove
	KindEventFilename
	KindEventFrame
	KindSimObjectData
	KindSimObjectDataByType
	KindWeatherObservation
	KindCloudState
	KindAssignedObjectID
	KindReservedKey
	KindCustomAction
	KindSystemState
	KindClientData
	KindEventWeatherMode
	KindAirportList
	KindVorList
	KindNdbList
	KindWaypointList
	KindEventMultiplayerServerStarted
	KindEventMultiplayerClientStarted
	KindEventMultiplayerSessionEnded
	KindEventRaceEnd
	KindEventRaceLap
)

var kindNames = [...]string{
	KindNull:                          "null",
	KindException:                     "exception",
	KindOpen:                          "open",
	KindQuit:                          "quit",
	KindEvent:                         "event",
	KindEventObjectAddRemove:          "event_object_addremove",
	KindEventFilename:                 "event_filename",
	KindEventFrame:                    "event_frame",
	KindSimObjectData:                 "simobject_data",
	KindSimObjectDataByType:           "simobject_data_bytype",
	KindWeatherObservation:            "weather_observation",
	KindCloudState:                    "cloud_state",
	KindAssignedObjectID:              "assigned_object_id",
	KindReservedKey:                   "reserved_key",
	KindCustomAction:                  "custom_action",
	KindSystemState:                   "system_state",
	KindClientData:                    "client_data",
	KindEventWeatherMode:              "event_weather_mode",
	KindAirportList:                   "airport_list",
	KindVorList:                       "vor_list",
	KindNdbList:                       "ndb_list",
	KindWaypointList:                  "waypoint_list",
	KindEventMultiplayerServerStarted: "event_multiplayer_server_started",
	KindEventMultiplayerClientStarted: "event_multiplayer_client_started",
	KindEventMultiplayerSessionEnded:  "event_multiplayer_session_ended",
	KindEventRaceEnd:                  "event_race_end",
	KindEventRaceLap:                  "event_race_lap",
}

// Label is String folded to a bounded set for metric labels: kinds past the
// known table all report as "unknown".
func (k Kind) Label() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint32(k))
}

// ExceptionCode is the host's reason for rejecting a request.
type ExceptionCode uint32

const (
	ExceptionNone ExceptionCode = iota
	ExceptionError
	ExceptionSizeMismatch
	ExceptionUnrecognizedID
	ExceptionUnopened
	ExceptionVersionMismatch
	ExceptionTooManyGroups
	ExceptionNameUnrecognized
	ExceptionTooManyEventNames
	ExceptionEventIDDuplicate
	ExceptionTooManyMaps
	ExceptionTooManyObjects
	ExceptionTooManyRequests
	ExceptionWeatherInvalidPort
	ExceptionWeatherInvalidMetar
	ExceptionWeatherUnableToGetObservation
	ExceptionWeatherUnableToCreateStation
	ExceptionWeatherUnableToRemoveStation
	ExceptionInvalidDataType
	ExceptionInvalidDataSize
	ExceptionDataError
	ExceptionInvalidArray
	ExceptionCreateObjectFailed
	ExceptionLoadFlightplanFailed
	ExceptionOperationInvalidForObjectType
	ExceptionIllegalOperation
	ExceptionAlreadySubscribed
	ExceptionInvalidEnum
	ExceptionDefinitionError
	ExceptionDuplicateID
	ExceptionDatumID
	ExceptionOutOfBounds
	ExceptionAlreadyCreated
	ExceptionObjectOutsideRealityBubble
	ExceptionObjectContainer
	ExceptionObjectAI
	ExceptionObjectATC
	ExceptionObjectSchedule
)

var exceptionNames = [...]string{
	ExceptionNone:                          "none",
	ExceptionError:                         "error",
	ExceptionSizeMismatch:                  "size_mismatch",
	ExceptionUnrecognizedID:                "unrecognized_id",
	ExceptionUnopened:                      "unopened",
	ExceptionVersionMismatch:               "version_mismatch",
	ExceptionTooManyGroups:                 "too_many_groups",
	ExceptionNameUnrecognized:              "name_unrecognized",
	ExceptionTooManyEventNames:             "too_many_event_names",
	ExceptionEventIDDuplicate:              "event_id_duplicate",
	ExceptionTooManyMaps:                   "too_many_maps",
	ExceptionTooManyObjects:                "too_many_objects",
	ExceptionTooManyRequests:               "too_many_requests",
	ExceptionWeatherInvalidPort:            "weather_invalid_port",
	ExceptionWeatherInvalidMetar:           "weather_invalid_metar",
	ExceptionWeatherUnableToGetObservation: "weather_unable_to_get_observation",
	ExceptionWeatherUnableToCreateStation:  "weather_unable_to_create_station",
	ExceptionWeatherUnableToRemoveStation:  "weather_unable_to_remove_station",
	ExceptionInvalidDataType:               "invalid_data_type",
	ExceptionInvalidDataSize:               "invalid_data_size",
	ExceptionDataError:                     "data_error",
	ExceptionInvalidArray:                  "invalid_array",
	ExceptionCreateObjectFailed:            "create_object_failed",
	ExceptionLoadFlightplanFailed:          "load_flightplan_failed",
	ExceptionOperationInvalidForObjectType: "operation_invalid_for_object_type",
	ExceptionIllegalOperation:              "illegal_operation",
	ExceptionAlreadySubscribed:             "already_subscribed",
	ExceptionInvalidEnum:                   "invalid_enum",
	ExceptionDefinitionError:               "definition_error",
	ExceptionDuplicateID:                   "duplicate_id",
	ExceptionDatumID:                       "datum_id",
	ExceptionOutOfBounds:                   "out_of_bounds",
	ExceptionAlreadyCreated:                "already_created",
	ExceptionObjectOutsideRealityBubble:    "object_outside_reality_bubble",
	ExceptionObjectContainer:               "object_container",
	ExceptionObjectAI:                      "object_ai",
	ExceptionObjectATC:                     "object_atc",
	ExceptionObjectSchedule:                "object_schedule",
}

// Label folds codes past the known table into "unknown" for metric labels.
func (c ExceptionCode) Label() string {
	if int(c) < len(exceptionNames) {
		return exceptionNames[c]
	}
	return "unknown"
}

func (c ExceptionCode) String() string {
	if int(c) < len(exceptionNames) {
		return exceptionNames[c]
	}
	return fmt.Sprintf("exception(%d)", uint32(c))
}
