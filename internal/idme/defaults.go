package idme

// ItemSpec one entry of the default table
type ItemSpec struct {
	Name       string `yaml:"name"`
	Size       uint32 `yaml:"size"`
	Exportable bool   `yaml:"exportable"`
	Permission uint32 `yaml:"permission"`
	Value      string `yaml:"value"`
}

// DefaultTable items created on first boot
var DefaultTable = []ItemSpec{
	{Name: "board_id", Size: 16, Exportable: true, Permission: 0o444, Value: "ffffff0000000000"},
	{Name: "serial", Size: 16, Exportable: true, Permission: 0o444, Value: "0"},
	{Name: "mac_addr", Size: 16, Exportable: true, Permission: 0o444, Value: "0"},
	{Name: "mac_sec", Size: 32, Exportable: true, Permission: 0o444, Value: "0"},
	{Name: "bt_mac_addr", Size: 16, Exportable: true, Permission: 0o444, Value: "0"},
	{Name: "productid", Size: 32, Exportable: true, Permission: 0o444, Value: "0"},
	{Name: "productid2", Size: 32, Exportable: true, Permission: 0o444, Value: "0"},
	// devices that start in a factory boot into diag
	{Name: "bootmode", Size: 4, Exportable: true, Permission: 0o444, Value: "2"},
	{Name: "postmode", Size: 4, Exportable: true, Permission: 0o444, Value: "0"},
	{Name: "bootcount", Size: 8, Exportable: true, Permission: 0o444, Value: "0"},
	{Name: "panelcal", Size: 160, Exportable: true, Permission: 0o444, Value: ""},
	{Name: "manufacturing", Size: 512, Exportable: true, Permission: 0o444, Value: ""},
}

// PermissionString formats an rwx bitmask like ls does, e.g. 0644 -> "rw-r--r--"
func PermissionString(perm uint32) string {
	const rwx = "rwx"
	buf := []byte("---------")
	for i := 0; i < len(buf); i++ {
		if perm&(1<<(8-i)) != 0 {
			buf[i] = rwx[i%3]
		}
	}
	return string(buf)
}
