package homekit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/hcbridge/internal/catalog"
	"github.com/nerrad567/hcbridge/internal/shadow"
)

func dimmer(name, subtype string) shadow.ShadowService {
	return shadow.ShadowService{
		Kind:        catalog.Lightbulb,
		DisplayName: name,
		Subtype:     subtype,
		Characteristics: []shadow.Characteristic{
			{Kind: catalog.On},
			{Kind: catalog.Brightness},
		},
	}
}

func TestAccessory_AddService(t *testing.T) {
	acc := newAccessory("12", 7, "Kitchen")
	require.Len(t, acc.Services(), 1)
	assert.True(t, acc.Services()[0].IsAccessoryInformation())

	ls, chars := acc.AddService(dimmer("Kitchen", "12----"))
	require.NoError(t, acc.takeErrors())

	name, named := ls.DisplayName()
	assert.True(t, named)
	assert.Equal(t, "Kitchen", name)
	assert.False(t, ls.IsAccessoryInformation())
	assert.Equal(t, "12----", ls.(*Service).Subtype())

	require.Len(t, chars, 2)
	assert.Equal(t, catalog.On, chars[0].Kind())
	assert.Equal(t, catalog.Brightness, chars[1].Kind())

	// Name characteristic plus the two requested ones.
	assert.Len(t, ls.(*Service).s.Cs, 3)
	assert.Len(t, acc.Services(), 2)
	assert.Contains(t, acc.HAP().Ss, ls.(*Service).s)
	assert.Equal(t, uint64(7), acc.HAP().Id)
	assert.True(t, acc.takeDirty())
	assert.False(t, acc.takeDirty())
}

func TestAccessory_RemoveService(t *testing.T) {
	acc := newAccessory("12", 7, "Kitchen")
	ls, _ := acc.AddService(dimmer("Kitchen", "12----"))
	acc.takeDirty()
	before := len(acc.HAP().Ss)

	acc.RemoveService(ls)
	assert.Len(t, acc.Services(), 1)
	assert.Len(t, acc.HAP().Ss, before-1)
	assert.True(t, acc.takeDirty())

	// Information service and unknown services are ignored.
	acc.RemoveService(acc.Services()[0])
	acc.RemoveService(ls)
	assert.Len(t, acc.Services(), 1)
	assert.False(t, acc.takeDirty())
}

func TestAccessory_UnknownKindCollectsError(t *testing.T) {
	acc := newAccessory("1", 2, "X")
	_, chars := acc.AddService(shadow.ShadowService{
		Kind:            "Television",
		DisplayName:     "X",
		Characteristics: []shadow.Characteristic{{Kind: catalog.On}, {Kind: "Volume"}},
	})
	assert.Len(t, chars, 1)
	err := acc.takeErrors()
	assert.ErrorIs(t, err, ErrUnknownService)
	assert.ErrorIs(t, err, ErrUnknownCharacteristic)
	assert.NoError(t, acc.takeErrors())
}

func TestCharacteristic_SetBounds(t *testing.T) {
	acc := newAccessory("6", 2, "Lux")
	_, chars := acc.AddService(shadow.ShadowService{
		Kind:        catalog.LightSensor,
		DisplayName: "Lux",
		Characteristics: []shadow.Characteristic{
			{Kind: catalog.CurrentAmbientLightLevel},
		},
	})
	require.Len(t, chars, 1)
	chars[0].SetBounds(catalog.Bounds{Min: catalog.Float(0), Max: catalog.Float(100000), Step: catalog.Float(1)})

	c := chars[0].(*Characteristic).c
	assert.Equal(t, 0.0, c.MinVal)
	assert.Equal(t, 100000.0, c.MaxVal)
	assert.Equal(t, 1.0, c.StepVal)

	_, chars = acc.AddService(dimmer("Lamp", "6--x"))
	prevMax := chars[1].(*Characteristic).c.MaxVal
	chars[1].SetBounds(catalog.Bounds{Min: catalog.Float(10)})
	c = chars[1].(*Characteristic).c
	assert.Equal(t, 10, c.MinVal)
	assert.Equal(t, prevMax, c.MaxVal)
}

func TestAccessory_SetInformationAndRecord(t *testing.T) {
	acc := newAccessory("12", 9, "old")
	acc.SetInformation(shadow.Information{
		Name:             "Kitchen",
		Manufacturer:     "Fibar Group",
		Model:            "com.fibaro.FGD212",
		SerialNumber:     "abc",
		FirmwareRevision: "-",
	})
	acc.AddService(dimmer("Kitchen", "12----"))

	info := acc.HAP().Info
	assert.Equal(t, "Kitchen", info.Name.Value())
	assert.Equal(t, "Fibar Group", info.Manufacturer.Value())
	assert.Equal(t, "com.fibaro.FGD212", info.Model.Value())
	assert.Equal(t, "abc", info.SerialNumber.Value())

	rec := acc.record()
	assert.Equal(t, "12", rec.DeviceID)
	assert.Equal(t, uint64(9), rec.AID)
	assert.Equal(t, "Kitchen", rec.Name)
	require.Len(t, rec.Services, 1)
	assert.Equal(t, "12----", rec.Services[0].Subtype)
	assert.Equal(t, catalog.Lightbulb, rec.Services[0].Kind)
	assert.Len(t, rec.Services[0].Characteristics, 2)
}
