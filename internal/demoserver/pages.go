package demoserver

// PageVersion is one revision of a demo page. HTML is an html/template
// rendered with pageData.
type PageVersion struct {
	HTML    string
	Headers map[string]string
}

// PageDefinition holds all versions of a single page.
type PageDefinition struct {
	Path        string
	Description string
	Versions    map[int]PageVersion
}

type pageData struct {
	Version   int
	Countdown string
}

// AllPages returns the demo shop pages. Higher versions add patterns, so
// bumping a version while a session monitors the page produces new
// detections.
func AllPages() []PageDefinition {
	return []PageDefinition{
		homePage(),
		productPage(),
		checkoutPage(),
		subscribePage(),
		cancelPage(),
	}
}

const shopHead = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Acme Outfitters</title>
    <style>
        body { font-family: system-ui, sans-serif; max-width: 760px; margin: 0 auto; padding: 20px; }
        .banner { background: #fff3cd; padding: 10px; border-radius: 4px; }
        .fine-print { font-size: 9px; color: #bbb; }
        .decline { font-size: 11px; color: #999; }
    </style>
</head>
<body>
    <nav><a href="/">Shop</a> | <a href="/product">Product</a> | <a href="/checkout">Checkout</a> | <a href="/subscribe">Membership</a></nav>
`

const shopFoot = `
    <footer><p>Acme Outfitters, page version {{.Version}}</p></footer>
</body>
</html>`

func homePage() PageDefinition {
	return PageDefinition{
		Path:        "/",
		Description: "Storefront landing page",
		Versions: map[int]PageVersion{
			1: {HTML: shopHead + `
    <h1>Acme Outfitters</h1>
    <p>Durable outdoor gear, shipped from our own warehouse.</p>
    <a href="/product">Browse the trail jacket</a>
` + shopFoot},
			2: {HTML: shopHead + `
    <h1>Acme Outfitters</h1>
    <div class="banner">Flash sale ends in {{.Countdown}}! Hurry, only today!</div>
    <p>Durable outdoor gear, shipped from our own warehouse.</p>
    <a href="/product">Browse the trail jacket</a>
` + shopFoot},
		},
	}
}

func productPage() PageDefinition {
	return PageDefinition{
		Path:        "/product",
		Description: "Product detail page; v2 adds scarcity and social proof claims",
		Versions: map[int]PageVersion{
			1: {HTML: shopHead + `
    <h1>Trail Jacket</h1>
    <p>Waterproof shell with taped seams. $129.00</p>
    <form action="/checkout" method="get">
        <button type="submit">Add to cart</button>
    </form>
` + shopFoot},
			2: {HTML: shopHead + `
    <h1>Trail Jacket</h1>
    <p>Waterproof shell with taped seams. $129.00</p>
    <p class="stock">Only 2 left in stock! Selling fast.</p>
    <p class="viewers">14 people are viewing this right now</p>
    <form action="/checkout" method="get">
        <button type="submit">Add to cart</button>
    </form>
` + shopFoot},
		},
	}
}

func checkoutPage() PageDefinition {
	return PageDefinition{
		Path:        "/checkout",
		Description: "Checkout form; later versions add hidden opt-ins and a countdown",
		Versions: map[int]PageVersion{
			1: {HTML: shopHead + `
    <h1>Checkout</h1>
    <form id="checkout" action="/checkout" method="post">
        <label>Email <input type="email" name="email"></label>
        <label><input type="checkbox" name="newsletter" checked> Send me offers and partner promotions</label>
        <button type="submit">Place order</button>
    </form>
` + shopFoot},
			2: {HTML: shopHead + `
    <h1>Checkout</h1>
    <form id="checkout" action="/checkout" method="post">
        <label>Email <input type="email" name="email"></label>
        <label><input type="checkbox" name="newsletter" checked> Send me offers and partner promotions</label>
        <input type="hidden" name="marketing_opt_in" value="yes">
        <label><input type="checkbox" name="protection_plan" checked> Add purchase protection ($4.99)</label>
        <button type="submit">Place order</button>
    </form>
` + shopFoot},
			3: {HTML: shopHead + `
    <h1>Checkout</h1>
    <div class="banner">Your cart is reserved for {{.Countdown}}. Offer expires soon!</div>
    <form id="checkout" action="/checkout" method="post">
        <label>Email <input type="email" name="email"></label>
        <label><input type="checkbox" name="newsletter" checked> Send me offers and partner promotions</label>
        <input type="hidden" name="marketing_opt_in" value="yes">
        <label><input type="checkbox" name="protection_plan" checked> Add purchase protection ($4.99)</label>
        <button type="submit">Place order</button>
        <a class="decline" href="/">No thanks, I don't like saving money</a>
    </form>
` + shopFoot},
		},
	}
}

func subscribePage() PageDefinition {
	return PageDefinition{
		Path:        "/subscribe",
		Description: "Membership sign-up; v2 hides the renewal terms",
		Versions: map[int]PageVersion{
			1: {HTML: shopHead + `
    <h1>Acme Plus</h1>
    <p>Start your 30-day free trial. After the trial, $9.99/month. Cancel anytime before the trial ends and you won't be charged.</p>
    <form action="/subscribe" method="post">
        <button type="submit">Start free trial</button>
    </form>
` + shopFoot},
			2: {HTML: shopHead + `
    <h1>Acme Plus</h1>
    <p>Start your free trial today!</p>
    <form action="/subscribe" method="post">
        <button type="submit">Start free trial</button>
    </form>
    <p class="fine-print">Membership automatically renews at $9.99/month and you will be charged unless cancelled by phone.</p>
` + shopFoot},
		},
	}
}

func cancelPage() PageDefinition {
	return PageDefinition{
		Path:        "/cancel",
		Description: "Membership cancellation with a confirmshaming decline",
		Versions: map[int]PageVersion{
			1: {HTML: shopHead + `
    <h1>Cancel membership</h1>
    <p>We're sorry to see you go.</p>
    <form action="/cancel" method="post">
        <button type="submit">Cancel membership</button>
    </form>
` + shopFoot},
			2: {HTML: shopHead + `
    <h1>Cancel membership</h1>
    <p>Are you sure? You will lose all your rewards forever.</p>
    <form action="/cancel" method="post">
        <button type="submit">Keep my benefits</button>
        <a class="decline" href="/cancel/confirm">No, I want to pay more for shipping</a>
    </form>
` + shopFoot},
		},
	}
}
