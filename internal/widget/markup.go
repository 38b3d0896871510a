package widget

// ButtonMarkup is the content mounted into the host element.
const ButtonMarkup = `<button class="uber-one-click" style="max-width:16vw; max-height:7.0vh; min-height:6vh; min-width:10vw; background-color:Transparent;">` +
	`<svg viewBox="-8 -2 95 20" width="100%" height="100%"><g><title>Uber one click</title>` +
	`<text x="0" y="14" fill="#09091A" font-family="sans-serif" font-size="16">UBER</text></g></svg></button>`
