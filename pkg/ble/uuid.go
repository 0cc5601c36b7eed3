package ble

import "tinygo.org/x/bluetooth"

// Nordic-UART-style service used by the BLE link, plus the standard
// Battery Service served directly (outside the correlation path).
var (
	nusServiceUUID = mustParseUUID("6e400001-b5a3-f393-e0a9-e50e24dcca9e")
	nusRXCharUUID  = mustParseUUID("6e400002-b5a3-f393-e0a9-e50e24dcca9e")
	nusTXCharUUID  = mustParseUUID("6e400003-b5a3-f393-e0a9-e50e24dcca9e")

	batteryServiceUUID   = bluetooth.New16BitUUID(0x180F)
	batteryLevelCharUUID = bluetooth.New16BitUUID(0x2A19)
)

func mustParseUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic("ble: invalid UUID constant " + s)
	}
	return u
}

// AdvertisedName is the fixed local name the device peripheral advertises
// and the host central scans for (by substring match).
const AdvertisedName = "memori"
