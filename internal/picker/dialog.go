package picker

import (
	"html/template"
	"io"
	"net/url"
)

const mapsScriptBase = "https://maps.googleapis.com/maps/api/js"

// ScriptURL is the maps loader URL with the places library and initMap callback.
func ScriptURL(apiKey string) string {
	q := url.Values{}
	q.Set("key", apiKey)
	q.Set("callback", "initMap")
	q.Set("libraries", "places")
	return mapsScriptBase + "?" + q.Encode()
}

// DialogData fills the picker dialog.
type DialogData struct {
	MapsAPIKey  string
	EstimateURL string
}

var dialogTmpl = template.Must(template.New("dialog").Funcs(template.FuncMap{
	"scriptURL": ScriptURL,
}).Parse(`<dialog id="uber-location-picker" open>
  <div class="pickup">
    <label for="location-start">Pickup</label>
    <input id="location-start" class="controls" type="text" placeholder="Pickup location">
  </div>
  <div class="dropoff">
    <label for="location-end">Dropoff</label>
    <input id="location-end" class="controls" type="text" placeholder="Dropoff location">
  </div>
  <div id="map" data-estimate-url="{{.EstimateURL}}"></div>
  <script src="{{scriptURL .MapsAPIKey}}" async defer></script>
</dialog>
`))

// Dialog writes the picker markup: two labeled search inputs, the map region
// and the maps loader. The loader calls initMap, so pages must define it
// before this markup.
func Dialog(w io.Writer, data DialogData) error {
	return dialogTmpl.Execute(w, data)
}
